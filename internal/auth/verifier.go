// Package auth implements bearer token verification and the request
// identity model: signature checks against the provider's signing keys,
// activity introspection, an independent expiry check, and UMA permission
// resolution.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/benyonsports/docstore/internal/cache"
	"github.com/benyonsports/docstore/internal/observability"
)

// IdentityProvider performs the provider round trips needed to verify a
// token. Implementations map transport failures onto the package's
// sentinel errors.
type IdentityProvider interface {
	// DecodeToken verifies the token signature against the provider's
	// signing keys and returns the decoded claims. Returns an error
	// wrapping ErrInvalidSignature when the token is malformed or its
	// signature does not verify.
	DecodeToken(ctx context.Context, token string) (*Claims, error)

	// Introspect asks the provider whether the token is active and
	// returns the introspection claims.
	Introspect(ctx context.Context, token string) (*Claims, error)

	// ResourcePermissions fetches the UMA permission records granted to
	// the token.
	ResourcePermissions(ctx context.Context, token string) ([]ResourcePermission, error)
}

// TokenPair is a fresh access/refresh token pair issued by the provider.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// Verification is the result of a successful token verification.
type Verification struct {
	Claims      *Claims              `json:"claims"`
	Permissions []ResourcePermission `json:"permissions"`
}

// Verifier verifies bearer tokens.
type Verifier interface {
	// Verify runs the full verification sequence on a raw bearer token.
	Verify(ctx context.Context, token string) (*Verification, error)
}

// verifier implements Verifier against an IdentityProvider, with optional
// result caching.
type verifier struct {
	provider IdentityProvider
	logger   observability.Logger
	metrics  *Metrics
	cache    cache.Cache
	cacheTTL time.Duration
	clock    func() time.Time
}

var _ Verifier = (*verifier)(nil)

// VerifierOption is a functional option for configuring the verifier.
type VerifierOption func(*verifier)

// WithVerifierLogger sets the logger for the verifier.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *verifier) {
		v.logger = logger
	}
}

// WithVerifierMetrics sets the metrics recorder for the verifier.
func WithVerifierMetrics(metrics *Metrics) VerifierOption {
	return func(v *verifier) {
		v.metrics = metrics
	}
}

// WithVerifierCache enables result caching. Entries live for at most ttl,
// clamped to the remaining token lifetime.
func WithVerifierCache(c cache.Cache, ttl time.Duration) VerifierOption {
	return func(v *verifier) {
		v.cache = c
		v.cacheTTL = ttl
	}
}

// WithVerifierClock overrides the wall clock used for expiry checks.
func WithVerifierClock(clock func() time.Time) VerifierOption {
	return func(v *verifier) {
		v.clock = clock
	}
}

// NewVerifier creates a Verifier backed by the given identity provider.
// By default every call performs the full provider round trips; caching is
// opt-in via WithVerifierCache.
func NewVerifier(provider IdentityProvider, opts ...VerifierOption) Verifier {
	v := &verifier{
		provider: provider,
		logger:   observability.NopLogger(),
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify runs the verification sequence: signature decode, activity
// introspection, an independent expiry check against the wall clock, and
// the permission fetch. The expiry check runs even when introspection
// reports the token active, so a stale provider answer cannot extend a
// token's life. A failed permission fetch degrades to an empty permission
// list rather than failing the request.
func (v *verifier) Verify(ctx context.Context, token string) (*Verification, error) {
	start := v.clock()

	if result, ok := v.cachedVerification(ctx, token); ok {
		v.metrics.RecordVerification("success", v.clock().Sub(start))
		return result, nil
	}

	result, err := v.verify(ctx, token)
	if err != nil {
		v.metrics.RecordVerification(FailureReason(err), v.clock().Sub(start))
		return nil, err
	}

	v.storeVerification(ctx, token, result)
	v.metrics.RecordVerification("success", v.clock().Sub(start))
	return result, nil
}

func (v *verifier) verify(ctx context.Context, token string) (*Verification, error) {
	claims, err := v.provider.DecodeToken(ctx, token)
	if err != nil {
		v.logger.Debug("token decode failed", observability.Error(err))
		return nil, err
	}

	introspection, err := v.provider.Introspect(ctx, token)
	if err != nil {
		v.logger.Warn("token introspection failed", observability.Error(err))
		return nil, err
	}
	if !introspection.Active {
		return nil, NewVerificationError("introspect", "token is not active", ErrInactiveToken)
	}

	// The expiry claim is checked against our own clock regardless of
	// what introspection reported. Prefer the introspection expiry and
	// fall back to the decoded one; a token with no establishable expiry
	// never passes.
	if introspection.ExpiresAt != 0 {
		claims.ExpiresAt = introspection.ExpiresAt
	}
	if claims.Expired(v.clock()) {
		return nil, NewVerificationError("expiry", "token expiry is in the past", ErrTokenExpired)
	}
	claims.Active = true

	permissions, err := v.provider.ResourcePermissions(ctx, token)
	if err != nil {
		v.logger.Warn("permission fetch failed, continuing with no permissions",
			observability.String("subject", claims.Subject),
			observability.Error(err))
		v.metrics.RecordPermissionFetchFailure()
		permissions = nil
	}

	return &Verification{
		Claims:      claims,
		Permissions: permissions,
	}, nil
}

// cachedVerification returns a previously cached verification for the
// token, re-checking expiry so a cached entry can never outlive the token.
func (v *verifier) cachedVerification(ctx context.Context, token string) (*Verification, bool) {
	if v.cache == nil {
		return nil, false
	}

	data, err := v.cache.Get(ctx, cache.HashKey(token))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			v.logger.Warn("verification cache read failed", observability.Error(err))
		}
		v.metrics.RecordCacheMiss()
		return nil, false
	}

	var result Verification
	if err := json.Unmarshal(data, &result); err != nil {
		v.metrics.RecordCacheMiss()
		return nil, false
	}
	if result.Claims == nil || result.Claims.Expired(v.clock()) {
		v.metrics.RecordCacheMiss()
		return nil, false
	}

	v.metrics.RecordCacheHit()
	return &result, true
}

func (v *verifier) storeVerification(ctx context.Context, token string, result *Verification) {
	if v.cache == nil {
		return
	}

	ttl := v.cacheTTL
	if remaining := time.Unix(result.Claims.ExpiresAt, 0).Sub(v.clock()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, cache.HashKey(token), data, ttl); err != nil {
		v.logger.Warn("verification cache write failed", observability.Error(err))
	}
}
