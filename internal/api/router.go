package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flashlight-core/internal/panel"
)

// API route prefix.
const routePrefix = "/api/flashlight"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	// Browser UI
	ui := panel.Handler(s.panelDir)
	r.Method(http.MethodGet, panel.IndexPath, ui)
	r.Method(http.MethodGet, panel.ScriptPath, ui)

	r.Route(routePrefix, func(r chi.Router) {
		r.Get("/current_state", s.handleCurrentState)
		r.Get("/history", s.handleHistory)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
	})

	// Observers. The path is configurable; it defaults to /api/flashlight/ws.
	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

// wsPath returns the configured WebSocket path.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return routePrefix + "/ws"
	}
	return s.wsCfg.Path
}
