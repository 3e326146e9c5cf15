package validation

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fortuna/kitscout/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver answers from a fixed table; unknown domains have no MX.
type stubResolver struct {
	mx    map[string]bool
	calls int
}

func (s *stubResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	s.calls++
	if s.mx[name] {
		return []*net.MX{{Host: "mx1." + name, Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func newStub() *stubResolver {
	return &stubResolver{mx: map[string]bool{"gmail.com": true, "oakfc.example": true}}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		email        string
		formatValid  bool
		hasMX        bool
		freeProvider bool
		risk         float64
		reason       string
	}{
		{"not-an-email", false, false, false, 1.0, ReasonInvalidFormat},
		{"", false, false, false, 1.0, ReasonInvalidFormat},
		{"x@mailinator.com", true, false, false, 0.95, ReasonDisposable},
		{"coach@gmail.com", true, true, true, 0.3, ReasonFreeProvider},
		{"  Coach@OakFC.example ", true, true, false, 0.1, ReasonBusiness},
		{"info@nomx.example", true, false, false, 0.9, ReasonNoMX},
	}

	v := NewValidator(WithResolver(newStub()))
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			res := v.Validate(context.Background(), tt.email)
			assert.Equal(t, tt.formatValid, res.FormatValid)
			assert.Equal(t, tt.hasMX, res.HasMX)
			assert.Equal(t, tt.freeProvider, res.FreeProvider)
			assert.Equal(t, tt.risk, res.BounceRisk)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.formatValid && tt.hasMX, res.Deliverable())
		})
	}
}

func TestValidateNormalizesAddress(t *testing.T) {
	res := NewValidator(WithResolver(newStub())).Validate(context.Background(), "  Coach@OakFC.example ")
	assert.Equal(t, "coach@oakfc.example", res.Email)
}

func TestDisposableSkipsLookup(t *testing.T) {
	stub := newStub()
	NewValidator(WithResolver(stub)).Validate(context.Background(), "a@10minutemail.com")
	assert.Equal(t, 0, stub.calls)
}

func TestResolverErrorMeansNoMX(t *testing.T) {
	v := NewValidator(WithResolver(resolverFunc(func(context.Context, string) ([]*net.MX, error) {
		return nil, errors.New("i/o timeout")
	})))
	res := v.Validate(context.Background(), "a@oakfc.example")
	assert.False(t, res.HasMX)
	assert.Equal(t, RiskNoMX, res.BounceRisk)
}

func TestValidateBatchSkipsEmpty(t *testing.T) {
	results := NewValidator(WithResolver(newStub())).ValidateBatch(context.Background(), []string{"a@gmail.com", " ", "bad"})
	require.Len(t, results, 2)
	assert.Equal(t, "a@gmail.com", results[0].Email)
	assert.Equal(t, ReasonInvalidFormat, results[1].Reason)
}

func TestMXCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	defer rc.Close()

	stub := newStub()
	v := NewValidator(WithResolver(stub), WithCache(rc, time.Hour))
	ctx := context.Background()

	first := v.Validate(ctx, "a@oakfc.example")
	second := v.Validate(ctx, "b@oakfc.example")
	assert.Equal(t, first.BounceRisk, second.BounceRisk)
	assert.Equal(t, 1, stub.calls)

	v.Validate(ctx, "c@nomx.example")
	v.Validate(ctx, "d@nomx.example")
	assert.Equal(t, 2, stub.calls)

	cached, err := rc.Get(ctx, "mx:nomx.example")
	require.NoError(t, err)
	assert.Equal(t, "0", cached)
}

type resolverFunc func(ctx context.Context, name string) ([]*net.MX, error)

func (f resolverFunc) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	return f(ctx, name)
}
