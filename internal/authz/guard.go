// Package authz evaluates access requirements against an authenticated
// identity. Checks are exact string membership with two blanket grants: the
// admin role satisfies any role requirement and the all-endpoints
// permission satisfies any permission requirement.
package authz

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benyonsports/docstore/internal/auth"
)

// Blanket grants.
const (
	// RoleAdmin satisfies every role requirement.
	RoleAdmin = "admin"

	// PermissionAllEndpoints satisfies every permission requirement.
	PermissionAllEndpoints = "api_all_endpoints"
)

// Requirement is a single access condition evaluated against an identity.
type Requirement interface {
	// Check evaluates the requirement. A denied Decision carries the
	// reason surfaced verbatim to the client.
	Check(identity *auth.Identity) Decision
}

// Decision is the outcome of evaluating a Requirement.
type Decision struct {
	Allowed bool
	Reason  string
}

var allowed = Decision{Allowed: true}

// roleRequirement requires a named role, or the admin override.
type roleRequirement struct {
	role string
}

// RequireRole returns a Requirement satisfied by holders of the named role
// or of the admin role.
func RequireRole(role string) Requirement {
	return roleRequirement{role: role}
}

func (r roleRequirement) Check(identity *auth.Identity) Decision {
	if identity.HasRole(r.role) || identity.HasRole(RoleAdmin) {
		return allowed
	}
	return Decision{
		Reason: fmt.Sprintf("Role '%s' required for this operation", r.role),
	}
}

// permissionRequirement requires a named permission, or the all-endpoints
// override.
type permissionRequirement struct {
	permission string
}

// RequirePermission returns a Requirement satisfied by holders of the
// named permission or of the all-endpoints permission.
func RequirePermission(permission string) Requirement {
	return permissionRequirement{permission: permission}
}

func (r permissionRequirement) Check(identity *auth.Identity) Decision {
	if identity.HasPermission(r.permission) || identity.HasPermission(PermissionAllEndpoints) {
		return allowed
	}
	return Decision{
		Reason: fmt.Sprintf("Permission '%s' required for this operation", r.permission),
	}
}

// Authorize evaluates all requirements in order, returning the first
// denial. A nil identity is denied outright.
func Authorize(identity *auth.Identity, requirements ...Requirement) Decision {
	if identity == nil {
		return Decision{Reason: "Not authenticated"}
	}
	for _, req := range requirements {
		if decision := req.Check(identity); !decision.Allowed {
			return decision
		}
	}
	return allowed
}

// Middleware returns a gin middleware enforcing the given requirements.
// It must run after the authentication middleware; a request without an
// identity is treated as unauthenticated rather than unauthorized.
func Middleware(requirements ...Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromGin(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}

		if decision := Authorize(identity, requirements...); !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": decision.Reason})
			return
		}

		c.Next()
	}
}
