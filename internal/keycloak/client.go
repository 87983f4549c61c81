// Package keycloak implements the identity provider client: JWKS-based
// token decoding, RFC 7662 introspection and UMA permission queries against
// a Keycloak realm.
package keycloak

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/benyonsports/docstore/internal/auth"
	"github.com/benyonsports/docstore/internal/config"
	"github.com/benyonsports/docstore/internal/observability"
)

// umaGrantType is the grant used for UMA permission queries.
const umaGrantType = "urn:ietf:params:oauth:grant-type:uma-ticket"

// maxResponseBytes caps provider response bodies.
const maxResponseBytes = 1 << 20

// Client performs provider round trips against a Keycloak realm. It
// implements auth.IdentityProvider.
type Client struct {
	jwksURL          string
	introspectionURL string
	tokenURL         string
	clientID         string
	clientSecret     string

	httpClient *http.Client
	jwks       *jwk.Cache
	breaker    *gobreaker.CircuitBreaker
	logger     observability.Logger
	tracer     trace.Tracer
}

var (
	_ auth.IdentityProvider = (*Client)(nil)
	_ auth.TokenRefresher   = (*Client)(nil)
)

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger observability.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for provider round trips.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Keycloak client for the configured realm. The JWKS
// endpoint is registered for background refresh; keys are fetched lazily on
// the first decode.
func NewClient(ctx context.Context, cfg config.KeycloakConfig, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("keycloak URL is required")
	}
	if cfg.Realm == "" {
		return nil, errors.New("keycloak realm is required")
	}

	base := strings.TrimSuffix(cfg.URL, "/")
	realmBase := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", base, url.PathEscape(cfg.Realm))

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		jwksURL:          realmBase + "/certs",
		introspectionURL: realmBase + "/token/introspect",
		tokenURL:         realmBase + "/token",
		clientID:         cfg.ClientID,
		clientSecret:     cfg.ClientSecret,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           observability.NopLogger(),
		tracer:           otel.Tracer("docstore/keycloak"),
	}

	for _, opt := range opts {
		opt(c)
	}

	jwksCache := jwk.NewCache(ctx)
	if err := jwksCache.Register(c.jwksURL,
		jwk.WithHTTPClient(c.httpClient),
		jwk.WithMinRefreshInterval(15*time.Minute),
	); err != nil {
		return nil, fmt.Errorf("register JWKS endpoint: %w", err)
	}
	c.jwks = jwksCache

	c.breaker = newBreaker(cfg.Breaker, c.logger)

	return c, nil
}

// newBreaker builds the circuit breaker guarding introspection and UMA
// round trips.
func newBreaker(cfg config.BreakerConfig, logger observability.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "keycloak",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration(),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			keycloakBreakerState.Set(breakerStateValue(to))
			logger.Warn("keycloak breaker state changed",
				observability.String("from", from.String()),
				observability.String("to", to.String()))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// DecodeToken verifies the token signature against the realm's signing
// keys and returns the payload claims. Claim validity (expiry, audience)
// is deliberately not checked here; the verifier owns those decisions.
func (c *Client) DecodeToken(ctx context.Context, token string) (*auth.Claims, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.decode")
	defer span.End()

	start := time.Now()

	set, err := c.jwks.Get(ctx, c.jwksURL)
	if err != nil {
		c.observe(span, "decode", "jwks_error", start, err)
		return nil, auth.NewVerificationError("decode", "failed to fetch signing keys",
			fmt.Errorf("%w: %w", auth.ErrProviderUnreachable, err))
	}

	if _, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(false),
	); err != nil {
		c.observe(span, "decode", "invalid_signature", start, err)
		return nil, auth.NewVerificationError("decode", "token signature verification failed",
			fmt.Errorf("%w: %w", auth.ErrInvalidSignature, err))
	}

	claims, err := decodePayload(token)
	if err != nil {
		c.observe(span, "decode", "invalid_payload", start, err)
		return nil, auth.NewVerificationError("decode", "token payload is not decodable",
			fmt.Errorf("%w: %w", auth.ErrInvalidSignature, err))
	}

	c.observe(span, "decode", "success", start, nil)
	return claims, nil
}

// decodePayload unmarshals the token's payload segment. The signature has
// already been verified at this point.
func decodePayload(token string) (*auth.Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token does not have three segments")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload segment: %w", err)
	}

	var claims auth.Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &claims, nil
}

// Introspect asks the realm's introspection endpoint about the token.
func (c *Client) Introspect(ctx context.Context, token string) (*auth.Claims, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.introspect")
	defer span.End()

	start := time.Now()

	form := url.Values{}
	form.Set("token", token)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	body, err := c.postForm(ctx, c.introspectionURL, form, "")
	if err != nil {
		c.observe(span, "introspect", "error", start, err)
		return nil, auth.NewVerificationError("introspect", "introspection request failed", err)
	}

	var claims auth.Claims
	if err := json.Unmarshal(body, &claims); err != nil {
		c.observe(span, "introspect", "parse_error", start, err)
		return nil, auth.NewVerificationError("introspect", "introspection response is not decodable",
			fmt.Errorf("%w: %w", auth.ErrProviderUnreachable, err))
	}

	c.observe(span, "introspect", "success", start, nil)
	return &claims, nil
}

// ResourcePermissions queries the UMA token endpoint for the permission
// records granted to the token.
func (c *Client) ResourcePermissions(ctx context.Context, token string) ([]auth.ResourcePermission, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.permissions")
	defer span.End()

	start := time.Now()

	form := url.Values{}
	form.Set("grant_type", umaGrantType)
	form.Set("audience", c.clientID)
	form.Set("response_mode", "permissions")

	body, err := c.postForm(ctx, c.tokenURL, form, token)
	if err != nil {
		c.observe(span, "permissions", "error", start, err)
		return nil, fmt.Errorf("permission query failed: %w", err)
	}

	var permissions []auth.ResourcePermission
	if err := json.Unmarshal(body, &permissions); err != nil {
		c.observe(span, "permissions", "parse_error", start, err)
		return nil, fmt.Errorf("parse permission response: %w", err)
	}

	c.observe(span, "permissions", "success", start, nil)
	return permissions, nil
}

// RefreshToken runs the refresh grant at the token endpoint. When the
// provider rotates the refresh token the new one is returned; otherwise the
// presented token is carried over so the caller always gets a usable pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.refresh")
	defer span.End()

	start := time.Now()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)

	body, err := c.postForm(ctx, c.tokenURL, form, "")
	if err != nil {
		c.observe(span, "refresh", "error", start, err)
		return nil, fmt.Errorf("refresh grant failed: %w", err)
	}

	var pair auth.TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		c.observe(span, "refresh", "parse_error", start, err)
		return nil, fmt.Errorf("parse refresh response: %w", err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	c.observe(span, "refresh", "success", start, nil)
	return &pair, nil
}

// postForm runs a form POST through the circuit breaker. A bearer token is
// attached when provided. Non-2xx statuses and transport failures count
// against the breaker; an open breaker reports the provider unreachable
// without a round trip.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, bearer string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnreachable, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %w", auth.ErrProviderUnreachable, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Debug("keycloak request rejected",
				observability.String("endpoint", endpoint),
				observability.Int("status", resp.StatusCode))
			return nil, fmt.Errorf("keycloak returned status %d", resp.StatusCode)
		}

		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnreachable, err)
		}
		return nil, err
	}

	return result.([]byte), nil
}

// observe records metrics and span status for one round trip.
func (c *Client) observe(span trace.Span, operation, result string, start time.Time, err error) {
	keycloakRequestTotal.WithLabelValues(operation, result).Inc()
	keycloakRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	span.SetAttributes(attribute.String("keycloak.operation", operation))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
}
