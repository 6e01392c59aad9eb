// Package server exposes scoring, claims and webhooks over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/event"
	"github.com/drewdunne/prbounty/internal/metrics"
	"github.com/drewdunne/prbounty/internal/pipeline"
	"github.com/drewdunne/prbounty/internal/store"
	"github.com/drewdunne/prbounty/internal/webhook"
)

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// Deps are the collaborators of a Server. Recorder is optional; without it
// the webhook routes are not mounted.
type Deps struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Recorder *event.Recorder
	Log      *zap.SugaredLogger
}

// Server is the HTTP server for prbounty.
type Server struct {
	cfg          *config.Config
	router       chi.Router
	store        store.Store
	pipeline     *pipeline.Pipeline
	recorder     *event.Recorder
	log          *zap.SugaredLogger
	httpServer   *httpServer
	httpServerMu sync.RWMutex  // protects httpServer pointer
	ready        chan struct{} // closed when server is ready to accept connections
}

// New creates a new Server with the given config.
func New(cfg *config.Config, d Deps) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		store:    d.Store,
		pipeline: d.Pipeline,
		recorder: d.Recorder,
		log:      d.Log.Named("http"),
		ready:    make(chan struct{}),
	}
	s.routes()
	return s
}

// Ready returns a channel that is closed when the server is ready to accept connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes sets up the HTTP routes.
func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticated)
		r.Post("/score", s.handleScore)
		r.Post("/claims", s.handleClaim)
		r.Get("/claims", s.handleClaimState)
	})

	if s.recorder == nil || !s.cfg.Webhooks.Enabled {
		return
	}

	// GitHub webhook
	if secret := s.cfg.Providers.GitHub.WebhookSecret; secret != "" {
		r.Method(http.MethodPost, "/webhook/github", webhook.NewGitHubHandler(secret, s.recorder.HandleGitHub))
	}

	// GitLab webhook
	if secret := s.cfg.Providers.GitLab.WebhookSecret; secret != "" {
		r.Method(http.MethodPost, "/webhook/gitlab", webhook.NewGitLabHandler(secret, s.recorder.HandleGitLab))
	}
}

// handleHealth responds with server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := s.store.Ping(r.Context()) == nil
	checks := map[string]interface{}{
		"store":    storeOK,
		"webhooks": s.recorder != nil && s.cfg.Webhooks.Enabled,
	}

	status := "ok"
	if !storeOK {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status: status,
		Checks: checks,
	})
}

// handleMetrics responds with current operational metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Get())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
