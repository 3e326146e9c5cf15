package validation

import (
	"context"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/fortuna/kitscout/internal/logger"
	"go.uber.org/zap"
)

// Bounce risk scores, from 0 (safe) to 1 (certain bounce).
const (
	RiskInvalidFormat = 1.0
	RiskDisposable    = 0.95
	RiskNoMX          = 0.9
	RiskFreeProvider  = 0.3
	RiskBusiness      = 0.1
)

const (
	ReasonInvalidFormat = "Invalid format"
	ReasonDisposable    = "Disposable email domain"
	ReasonNoMX          = "No MX record found"
	ReasonFreeProvider  = "Free email provider (less reliable for teams)"
	ReasonBusiness      = "Valid business email"
)

var emailFormat = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var freeProviders = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "hotmail.com": true, "outlook.com": true,
	"aol.com": true, "icloud.com": true, "mail.com": true, "protonmail.com": true,
	"zoho.com": true, "yandex.com": true, "live.com": true, "msn.com": true,
	"gmx.com": true, "fastmail.com": true,
}

var disposableDomains = map[string]bool{
	"mailinator.com": true, "guerrillamail.com": true, "tempmail.com": true,
	"throwaway.email": true, "10minutemail.com": true, "trashmail.com": true,
	"fakeinbox.com": true,
}

// Result is the outcome of validating one address.
type Result struct {
	Email        string  `json:"email"`
	FormatValid  bool    `json:"is_valid_format"`
	HasMX        bool    `json:"has_mx_record"`
	FreeProvider bool    `json:"is_free_provider"`
	BounceRisk   float64 `json:"bounce_risk"`
	Reason       string  `json:"reason"`
}

// Deliverable is the flag stored on a lead: well formed and able to receive mail.
func (r Result) Deliverable() bool {
	return r.FormatValid && r.HasMX
}

// Resolver looks up mail exchangers; *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Cache remembers MX outcomes between runs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Validator scores email addresses for deliverability.
type Validator struct {
	resolver Resolver
	cache    Cache
	ttl      time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithResolver replaces the system DNS resolver.
func WithResolver(r Resolver) Option {
	return func(v *Validator) { v.resolver = r }
}

// WithCache caches MX lookups for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(v *Validator) {
		v.cache = c
		v.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// NewValidator creates a validator using the system resolver by default.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		resolver: net.DefaultResolver,
		ttl:      24 * time.Hour,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = logger.OrNop(v.log).Named("validation")
	return v
}

// Validate checks format, disposable domain, free provider and MX presence,
// stopping at the first disqualifying check.
func (v *Validator) Validate(ctx context.Context, email string) Result {
	email = strings.ToLower(strings.TrimSpace(email))
	res := Result{Email: email}

	if !emailFormat.MatchString(email) {
		res.BounceRisk = RiskInvalidFormat
		res.Reason = ReasonInvalidFormat
		return res
	}
	res.FormatValid = true

	domain := email[strings.LastIndex(email, "@")+1:]

	if disposableDomains[domain] {
		res.BounceRisk = RiskDisposable
		res.Reason = ReasonDisposable
		return res
	}

	res.FreeProvider = freeProviders[domain]
	res.HasMX = v.hasMX(ctx, domain)

	switch {
	case !res.HasMX:
		res.BounceRisk = RiskNoMX
		res.Reason = ReasonNoMX
	case res.FreeProvider:
		res.BounceRisk = RiskFreeProvider
		res.Reason = ReasonFreeProvider
	default:
		res.BounceRisk = RiskBusiness
		res.Reason = ReasonBusiness
	}
	return res
}

// ValidateBatch validates every non-empty address in order.
func (v *Validator) ValidateBatch(ctx context.Context, emails []string) []Result {
	results := make([]Result, 0, len(emails))
	for _, e := range emails {
		if strings.TrimSpace(e) == "" {
			continue
		}
		results = append(results, v.Validate(ctx, e))
	}
	return results
}

// hasMX reports whether domain publishes at least one MX record. Lookup
// failures count as "no record".
func (v *Validator) hasMX(ctx context.Context, domain string) bool {
	key := "mx:" + domain
	if v.cache != nil {
		if cached, err := v.cache.Get(ctx, key); err == nil {
			return cached == "1"
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	records, err := v.resolver.LookupMX(lookupCtx, domain)
	found := err == nil && len(records) > 0
	if err != nil {
		v.log.Debug("mx lookup failed", zap.String("domain", domain), zap.Error(err))
	}

	// Only cache definite answers, not timeouts or a cancelled caller.
	if v.cache != nil && ctx.Err() == nil && (err == nil || isNotFound(err)) {
		value := "0"
		if found {
			value = "1"
		}
		if cerr := v.cache.Set(ctx, key, value, v.ttl); cerr != nil {
			v.log.Debug("mx cache write failed", zap.String("domain", domain), zap.Error(cerr))
		}
	}
	return found
}

func isNotFound(err error) bool {
	dnsErr, ok := err.(*net.DNSError)
	return ok && dnsErr.IsNotFound
}
