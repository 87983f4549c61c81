package auth

import "time"

// RoleMapping is a set of role grants, as nested under realm_access and
// resource_access entries in the provider's token model.
type RoleMapping struct {
	Roles []string `json:"roles"`
}

// Claims is the decoded/introspected view of a bearer token. The JSON
// layout matches both the token payload and the RFC 7662 introspection
// response in the provider's (Keycloak) realm/client model.
type Claims struct {
	Subject  string `json:"sub"`
	Username string `json:"name"`
	Email    string `json:"email"`

	// Active is the introspection active flag. It is absent (false) on
	// claims decoded from the token payload itself.
	Active bool `json:"active"`

	// ExpiresAt is the expiry claim in epoch seconds.
	ExpiresAt int64 `json:"exp"`

	RealmAccess    RoleMapping            `json:"realm_access"`
	ResourceAccess map[string]RoleMapping `json:"resource_access"`
}

// ResourcePermission is a raw UMA permission record returned by the
// provider's authorization endpoint.
type ResourcePermission struct {
	ResourceID   string   `json:"rsid"`
	ResourceName string   `json:"rsname"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Expired reports whether the expiry claim is in the past relative to now.
// A missing expiry claim counts as expired: verification must never pass a
// token whose lifetime cannot be established.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == 0 {
		return true
	}
	return now.Unix() > c.ExpiresAt
}

// AllRoles returns the union of realm roles and every client's roles,
// deduplicated, preserving first-seen order.
func (c *Claims) AllRoles() []string {
	seen := make(map[string]bool)
	roles := make([]string, 0, len(c.RealmAccess.Roles))

	add := func(rs []string) {
		for _, r := range rs {
			if !seen[r] {
				seen[r] = true
				roles = append(roles, r)
			}
		}
	}

	add(c.RealmAccess.Roles)
	for _, mapping := range c.ResourceAccess {
		add(mapping.Roles)
	}

	return roles
}

// ClientRoles returns the roles granted under a single client. Callers
// interested in only the primary front-end client's grants use this
// instead of the union.
func (c *Claims) ClientRoles(clientID string) []string {
	mapping, ok := c.ResourceAccess[clientID]
	if !ok {
		return nil
	}
	return mapping.Roles
}

// PermissionSet is the per-request authorization view derived from verified
// claims: role-based and resource-based access are independently meaningful.
type PermissionSet struct {
	Roles       []string
	Permissions []string
}

// ResolvePermissions derives a PermissionSet from verified claims and the
// raw UMA permission records fetched for the token.
func ResolvePermissions(claims *Claims, records []ResourcePermission) PermissionSet {
	permissions := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ResourceName != "" {
			permissions = append(permissions, rec.ResourceName)
		}
	}

	return PermissionSet{
		Roles:       claims.AllRoles(),
		Permissions: permissions,
	}
}
