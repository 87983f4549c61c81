package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benyonsports/docstore/internal/observability"
)

// IdentityKey is the gin context key under which the authenticated
// identity is stored.
const IdentityKey = "auth.identity"

// headerAuthorization is the header carrying bearer credentials.
const headerAuthorization = "Authorization"

// Middleware returns a gin middleware that authenticates every request.
// The Authorization header is parsed before the verifier is consulted: a
// missing or malformed header is rejected without any provider round trip.
// On success the identity is attached to the request context and the gin
// context; on any failure the request is aborted with 401 and no identity
// exists downstream.
func Middleware(verifier Verifier, primaryClient string, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.GetHeader(headerAuthorization))
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		result, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debug("authentication failed",
				observability.String("reason", FailureReason(err)),
				observability.String("path", c.Request.URL.Path))
			abortUnauthorized(c, err)
			return
		}

		identity := NewIdentity(result.Claims, ResolvePermissions(result.Claims, result.Permissions))

		c.Set(IdentityKey, identity)
		c.Request = c.Request.WithContext(ContextWithIdentity(c.Request.Context(), identity))

		// Kept for handlers that report the primary client's grants
		// separately from the union.
		c.Set(primaryRolesKey, result.Claims.ClientRoles(primaryClient))

		c.Next()
	}
}

// primaryRolesKey is the gin context key for the primary client's roles.
const primaryRolesKey = "auth.primaryRoles"

// IdentityFromGin returns the authenticated identity for a request, or
// false when the request was not authenticated.
func IdentityFromGin(c *gin.Context) (*Identity, bool) {
	value, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*Identity)
	return identity, ok
}

// PrimaryRolesFromGin returns the roles granted under the primary client
// for the authenticated request.
func PrimaryRolesFromGin(c *gin.Context) []string {
	value, ok := c.Get(primaryRolesKey)
	if !ok {
		return nil
	}
	roles, _ := value.([]string)
	return roles
}

// abortUnauthorized maps a verification error onto a 401 response. The
// message is the sentinel's own text for known failure kinds; anything
// unrecognized is still rejected, carrying the original error message so
// the caller can see what the provider reported.
func abortUnauthorized(c *gin.Context, err error) {
	message := err.Error()
	for _, sentinel := range []error{
		ErrMissingToken,
		ErrMalformedHeader,
		ErrInvalidSignature,
		ErrInactiveToken,
		ErrTokenExpired,
		ErrProviderUnreachable,
	} {
		if errors.Is(err, sentinel) {
			message = sentinel.Error()
			break
		}
	}

	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": message})
}
