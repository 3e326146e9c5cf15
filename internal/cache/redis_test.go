package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestSetGetDelete(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "mx:oak.example", "1", time.Hour))
	assert.True(t, mr.Exists("kitscout:mx:oak.example"))

	v, err := rc.Get(ctx, "mx:oak.example")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, rc.Delete(ctx, "mx:oak.example"))
	_, err = rc.Get(ctx, "mx:oak.example")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestExpiry(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := rc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestConnectFailure(t *testing.T) {
	_, err := NewRedisCache("redis://127.0.0.1:1")
	assert.Error(t, err)

	_, err = NewRedisCache("not a url")
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	rc, _ := setupTestRedis(t)
	assert.NoError(t, rc.HealthCheck(context.Background()))
}
