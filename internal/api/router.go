// Package api provides the HTTP transport for weather-mcp: the streamable
// MCP endpoint plus operational endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nwsmcp/weather-mcp/internal/api/handler"
	"github.com/nwsmcp/weather-mcp/internal/api/middleware"
	"github.com/nwsmcp/weather-mcp/internal/api/response"
	"github.com/nwsmcp/weather-mcp/internal/auth"
)

// MCPPath is where the streamable MCP endpoint is mounted.
const MCPPath = "/mcp"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger

	// Metrics records HTTP metrics (optional).
	Metrics *middleware.Metrics

	// Health reports upstream provider health for /v1/ops (optional).
	Health handler.HealthSource

	// Tools lists the tool names reported by /v1/ops/status.
	Tools []string

	// MCPHandler serves the MCP protocol.
	MCPHandler http.Handler

	// JWT enables bearer auth on the MCP endpoint when set.
	JWT *auth.JWTService

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route for "+req.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.MethodNotAllowed(w, req, req.Method+" is not supported on "+req.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Tools, cfg.Health)

	// Avoid handing Auth a typed nil.
	var validator middleware.TokenValidator
	if cfg.JWT != nil {
		validator = cfg.JWT
	}

	if cfg.MCPHandler != nil {
		r.With(middleware.Auth(validator)).Handle(MCPPath, cfg.MCPHandler)
	}

	r.Route("/v1/ops", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.With(middleware.Auth(validator)).Get("/status", opsHandler.SystemStatus)
	})

	return r
}
