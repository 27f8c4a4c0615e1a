package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docanalyze/internal/config"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pathstore"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

// AnalysisStore reads and removes persisted analyses. *pathstore.Client
// satisfies it.
type AnalysisStore interface {
	GetNode(ctx context.Context, key string) (*pathstore.NodeResponse, error)
	DeleteNode(ctx context.Context, key string, recursive bool) error
}

// Server is the HTTP API server for docanalyze.
type Server struct {
	router  chi.Router
	orch    *pipeline.Orchestrator
	queue   *pipeline.Queue
	store   AnalysisStore
	stats   *extract.LLMStats
	metrics *pipeline.Metrics
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server. store, stats and metrics
// may be nil; the endpoints that need them then answer 503.
func NewServer(cfg config.Config, orch *pipeline.Orchestrator, queue *pipeline.Queue, store AnalysisStore,
	stats *extract.LLMStats, metrics *pipeline.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		orch:    orch,
		queue:   queue,
		store:   store,
		stats:   stats,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
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
	r.Get("/metrics", s.handleMetrics)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/analyze", s.handleAnalyze)
		r.Post("/api/plan", s.handlePlan)

		r.Post("/api/jobs", s.handleSubmitJob)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/result", s.handleJobResult)

		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/analyses/{docID}", s.handleGetAnalysis)
		r.Delete("/api/analyses/{docID}", s.handleDeleteAnalysis)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.queue != nil {
		resp["queue_depth"] = s.queue.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		jsonError(w, "metrics disabled", http.StatusServiceUnavailable)
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}
