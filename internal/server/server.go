package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/store"
)

// Server is the pulse HTTP API server.
type Server struct {
	engine  *engine.Engine
	db      *store.DB
	router  chi.Router
	version string
	started time.Time
	metrics bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes Prometheus metrics at /metrics.
func WithMetrics() Option {
	return func(s *Server) { s.metrics = true }
}

// New creates a Server around eng. db is optional and only backs the
// health check and the export audit route.
func New(eng *engine.Engine, db *store.DB, version string, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		db:      db,
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/observations", s.handleObservation)
		r.Get("/observations", s.handleObservationLog)
		r.Get("/profile", s.handleProfile)
		r.Get("/profile/debug", s.handleDebugProfile)
		r.Get("/match", s.handleMatch)
		r.Get("/tags", s.handleTags)
		r.Post("/sweep", s.handleSweep)
		r.Get("/exports", s.handleExports)
		r.Get("/exports/{commitment}", s.handleExport)
	})

	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"taxonomy": s.engine.Taxonomy().Source(),
		"leaves":   s.engine.Taxonomy().Len(),
		"db":       false,
	}
	if s.db != nil {
		body["db"] = s.db.Ping() == nil
		body["db_path"] = s.db.Path
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
