package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/hearth/internal/auth"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	// Unauthenticated monitoring
	r.Get("/api/v1/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Browser UI endpoints
		r.Route("/api", func(r chi.Router) {
			r.With(s.requirePermission(auth.PermCommandSend)).Post("/command", s.handleCommand)
			r.With(s.requirePermission(auth.PermStatusRead)).Get("/status", s.handleStatus)
			r.With(s.requirePermission(auth.PermDeviceOperate)).Post("/device/toggle", s.handleToggleDevice)
			r.With(s.requirePermission(auth.PermSceneExecute)).Post("/scene/activate", s.handleActivateScene)
		})

		// Read-only v1 endpoints
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermStatusRead))

			r.Get("/devices", s.handleListDevices)
			r.Get("/devices/{name}", s.handleGetDevice)
			r.Get("/devices/{name}/history", s.handleGetDeviceHistory)
			r.Get("/scenes", s.handleListScenes)
			r.Get("/commands", s.handleListCommands)
			r.Get("/automation/runs", s.handleListRuns)
			r.Get("/system", s.handleSystem)
		})
	})

	return r
}

// handleHealth reports liveness and the server version.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}
