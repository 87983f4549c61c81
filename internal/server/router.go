package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benyonsports/docstore/internal/auth"
	"github.com/benyonsports/docstore/internal/authz"
	"github.com/benyonsports/docstore/internal/observability"
	"github.com/benyonsports/docstore/internal/preview"
	"github.com/benyonsports/docstore/internal/storage"
)

// Deps are the constructed dependencies the router wires together.
type Deps struct {
	Verifier      auth.Verifier
	Refresher     auth.TokenRefresher
	PrimaryClient string
	Store         *storage.Store
	Preview       *preview.Service
	Logger        observability.Logger
}

// route declares one protected endpoint with its access requirements.
// Requirements are declared here, per route, rather than inside handlers.
type route struct {
	method       string
	path         string
	requirements []authz.Requirement
	handler      gin.HandlerFunc
}

// NewRouter builds the gin engine: public liveness and metrics routes,
// then the authenticated API with per-route requirements.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	h := &handlers{
		store:     deps.Store,
		preview:   deps.Preview,
		refresher: deps.Refresher,
		logger:    logger,
	}

	engine := gin.New()
	engine.Use(
		RequestID(),
		Logging(logger),
		Metrics(),
		Recovery(logger),
	)

	engine.GET("/", h.root)
	engine.GET("/healthz", h.root)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The refresh grant authenticates with the refresh token itself, so
	// it sits outside the bearer-token middleware.
	engine.POST("/api/auth/refresh", h.refresh)

	api := engine.Group("/api")
	api.Use(auth.Middleware(deps.Verifier, deps.PrimaryClient, logger))

	routes := []route{
		{"POST", "/files/upload", []authz.Requirement{authz.RequireRole(authz.RoleAdmin)}, h.upload},
		{"POST", "/files/upload_multiple", []authz.Requirement{authz.RequireRole(authz.RoleAdmin)}, h.uploadMultiple},
		{"GET", "/files/newly_added", nil, h.newlyAdded},
		{"POST", "/files/search", nil, h.search},
		{"POST", "/files/download", nil, h.download},
		{"DELETE", "/files/delete", []authz.Requirement{authz.RequireRole(authz.RoleAdmin)}, h.deletePath},
		{"POST", "/files/create_dir", []authz.Requirement{authz.RequireRole(authz.RoleAdmin)}, h.createDir},
		{"POST", "/files/dir_contents", nil, h.dirContents},
		{"GET", "/files/preview/*path", []authz.Requirement{authz.RequirePermission("doc:read")}, h.previewDoc},
		{"GET", "/auth/userinfo", nil, h.userinfo},
	}

	for _, r := range routes {
		chain := make([]gin.HandlerFunc, 0, 2)
		if len(r.requirements) > 0 {
			chain = append(chain, authz.Middleware(r.requirements...))
		}
		chain = append(chain, r.handler)
		api.Handle(r.method, r.path, chain...)
	}

	return engine
}
