package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/bookish/internal/config"
	"github.com/dgallion1/bookish/internal/editor"
	"github.com/dgallion1/bookish/internal/pipeline"
	"github.com/dgallion1/bookish/internal/stats"
)

// Server is the HTTP API server for bookish.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	sessions     *editor.Manager
	stats        *stats.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, sessions *editor.Manager, st *stats.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		sessions:     sessions,
		stats:        st,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/parse", s.handleParse)
		r.Post("/api/import", s.handleImport)
		r.Post("/api/export", s.handleExport)
		r.Post("/api/index", s.handleIndex)

		r.Post("/api/books", s.handleBuild)
		r.Get("/api/books/{jobID}/status", s.handleBuildStatus)
		r.Get("/api/books/{jobID}/index", s.handleBookIndex)
		r.Get("/api/books/{jobID}/html", s.handleBookHTML)
		r.Get("/api/books/{jobID}/chapters/{chapterID}", s.handleBookChapter)

		r.Post("/api/sessions", s.handleCreateSession)
		r.Get("/api/sessions/{sessionID}", s.handleGetSession)
		r.Delete("/api/sessions/{sessionID}", s.handleDeleteSession)
		r.Post("/api/sessions/{sessionID}/ops", s.handleApply)
		r.Post("/api/sessions/{sessionID}/revert", s.handleRevert)
		r.Get("/api/sessions/{sessionID}/nodes/{nodeID}", s.handleGetNode)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
