// Package server exposes the docstore HTTP API: public liveness and
// metrics endpoints plus the authenticated file API.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/benyonsports/docstore/internal/config"
	"github.com/benyonsports/docstore/internal/observability"
)

// ginModeOnce guards the process-wide gin mode setting.
var ginModeOnce sync.Once

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	httpServer *http.Server
	logger     observability.Logger
}

// New creates a Server from configuration and constructed dependencies.
func New(cfg config.ServerConfig, deps Deps) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	engine := NewRouter(deps)

	var handler http.Handler = engine
	if cfg.MaxRequestBodySize > 0 {
		handler = maxBodyHandler(engine, cfg.MaxRequestBodySize)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout.Duration(),
			WriteTimeout: cfg.WriteTimeout.Duration(),
			IdleTimeout:  cfg.IdleTimeout.Duration(),
		},
		logger: logger,
	}
}

// maxBodyHandler caps request body sizes before they reach the router.
func maxBodyHandler(next http.Handler, limit int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until it fails or is shut down. http.ErrServerClosed
// is swallowed so a clean shutdown reports no error.
func (s *Server) Start() error {
	s.logger.Info("http server starting", observability.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
