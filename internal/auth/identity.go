package auth

import (
	"context"
	"errors"
)

// Identity is the authenticated principal attached to a request. It is
// built once by the authentication middleware after successful
// verification, is read-only to downstream handlers, and is discarded when
// the request ends. An Identity never exists for a request whose
// verification failed.
type Identity struct {
	// Subject is the unique identifier for the user.
	Subject string `json:"sub"`

	// Username is the display name of the user.
	Username string `json:"name,omitempty"`

	// Email is the email address of the user.
	Email string `json:"email,omitempty"`

	// Roles is the union of realm roles and all per-client roles.
	Roles []string `json:"roles,omitempty"`

	// Permissions is the list of UMA resource names granted to the token.
	Permissions []string `json:"permissions,omitempty"`
}

// NewIdentity builds an Identity from verified claims and the derived
// permission set.
func NewIdentity(claims *Claims, perms PermissionSet) *Identity {
	return &Identity{
		Subject:     claims.Subject,
		Username:    claims.Username,
		Email:       claims.Email,
		Roles:       perms.Roles,
		Permissions: perms.Permissions,
	}
}

// HasRole checks if the identity has a specific role. Exact string
// membership only.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the identity has a specific permission. Exact
// string membership only.
func (i *Identity) HasPermission(permission string) bool {
	for _, p := range i.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Context key type for identity.
type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok
}

// ErrIdentityNotFound is returned when no identity is present in a context.
var ErrIdentityNotFound = errors.New("identity not found in context")

// IdentityFromContextOrError extracts the identity from the context or
// returns ErrIdentityNotFound.
func IdentityFromContextOrError(ctx context.Context) (*Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity == nil {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}
