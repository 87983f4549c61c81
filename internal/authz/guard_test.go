package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benyonsports/docstore/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identity   *auth.Identity
		role       string
		allowed    bool
		wantReason string
	}{
		{
			name:     "exact role match",
			identity: &auth.Identity{Roles: []string{"editor"}},
			role:     "editor",
			allowed:  true,
		},
		{
			name:     "admin overrides any role requirement",
			identity: &auth.Identity{Roles: []string{"viewer", "admin"}},
			role:     "editor",
			allowed:  true,
		},
		{
			name:       "missing role denied with reason",
			identity:   &auth.Identity{Roles: []string{"viewer"}},
			role:       "editor",
			allowed:    false,
			wantReason: "Role 'editor' required for this operation",
		},
		{
			name:       "no substring match",
			identity:   &auth.Identity{Roles: []string{"editors"}},
			role:       "editor",
			allowed:    false,
			wantReason: "Role 'editor' required for this operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision := RequireRole(tt.role).Check(tt.identity)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.wantReason, decision.Reason)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identity   *auth.Identity
		permission string
		allowed    bool
		wantReason string
	}{
		{
			name:       "exact permission match",
			identity:   &auth.Identity{Permissions: []string{"doc:read"}},
			permission: "doc:read",
			allowed:    true,
		},
		{
			name:       "missing permission denied",
			identity:   &auth.Identity{Permissions: []string{"doc:read"}},
			permission: "doc:write",
			allowed:    false,
			wantReason: "Permission 'doc:write' required for this operation",
		},
		{
			name:       "all-endpoints permission overrides",
			identity:   &auth.Identity{Permissions: []string{"api_all_endpoints"}},
			permission: "doc:write",
			allowed:    true,
		},
		{
			name:       "admin role does not grant permissions",
			identity:   &auth.Identity{Roles: []string{"admin"}},
			permission: "doc:write",
			allowed:    false,
			wantReason: "Permission 'doc:write' required for this operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision := RequirePermission(tt.permission).Check(tt.identity)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.wantReason, decision.Reason)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	identity := &auth.Identity{
		Roles:       []string{"viewer"},
		Permissions: []string{"doc:read"},
	}

	t.Run("no requirements always allows", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Authorize(identity).Allowed)
	})

	t.Run("nil identity denied", func(t *testing.T) {
		t.Parallel()
		decision := Authorize(nil, RequireRole("viewer"))
		assert.False(t, decision.Allowed)
	})

	t.Run("first denial wins", func(t *testing.T) {
		t.Parallel()
		decision := Authorize(identity, RequireRole("viewer"), RequireRole("editor"))
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.Reason, "editor")
	})

	t.Run("all satisfied", func(t *testing.T) {
		t.Parallel()
		decision := Authorize(identity, RequireRole("viewer"), RequirePermission("doc:read"))
		assert.True(t, decision.Allowed)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	newRouter := func(identity *auth.Identity, requirements ...Requirement) *gin.Engine {
		router := gin.New()
		if identity != nil {
			router.Use(func(c *gin.Context) {
				c.Set(auth.IdentityKey, identity)
			})
		}
		router.Use(Middleware(requirements...))
		router.GET("/resource", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	do := func(router *gin.Engine) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed request reaches handler", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&auth.Identity{Roles: []string{"admin"}}, RequireRole("editor"))
		rec := do(router)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied request gets 403 with reason", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&auth.Identity{Roles: []string{"viewer"}}, RequireRole("editor"))
		rec := do(router)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "Role 'editor' required for this operation")
	})

	t.Run("missing identity gets 401", func(t *testing.T) {
		t.Parallel()

		router := newRouter(nil, RequireRole("editor"))
		rec := do(router)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
