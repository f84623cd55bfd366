// Package http implements the REST API of the matching engine.
// It is a thin layer: every route decodes its input, calls one command or
// query handler and maps the outcome onto a status code.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/config"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/command"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/query"
	"github.com/Moeed-Tahir/perfect-connect/internal/interface/http/handlers"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// RateLimit - requests per RateWindow per client IP (0 = disabled).
	RateLimit  int
	RateWindow time.Duration

	// APIKeyHashes - bcrypt hashes of accepted API keys (empty = no auth).
	APIKeyHashes []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		RateLimit:      100,
		RateWindow:     time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileConnectionsCommand) (*command.ReconcileConnectionsResult, error)
}

// Dependencies contains all dependencies required by the HTTP handlers.
type Dependencies struct {
	// Commands (CQRS write side)
	ToggleInterest    *command.ToggleInterestHandler
	UpsertParticipant *command.UpsertParticipantHandler
	SetProgramPause   *command.SetProgramPauseHandler
	BlockParticipant  *command.BlockParticipantHandler
	Reconcile         Reconciler

	// Queries (CQRS read side)
	GetConnections     *query.GetConnectionsHandler
	GetCommonalities   *query.GetCommonalitiesHandler
	ListInterests      *query.ListInterestsHandler
	HasPendingInterest *query.HasPendingInterestHandler
	DiscoverCandidates *query.DiscoverCandidatesHandler

	// Features gates optional routes. Nil enables everything.
	Features *config.FeatureFlags

	HealthChecker handlers.HealthChecker
	Metrics       *metrics.Manager
	Logger        zerolog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	handler    http.Handler
	logger     zerolog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.ToggleInterest == nil {
		return nil, errors.New("http: toggle interest handler is required")
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker("")
	}

	auth, err := NewAPIKeyAuth(cfg.APIKeyHashes)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "http").Logger(),
	}
	s.handler = s.routes(auth)

	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s, nil
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes(auth *APIKeyAuth) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", APIKeyHeader, "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// API v1
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		if s.config.RateLimit > 0 {
			r.Use(httprate.Limit(s.config.RateLimit, s.config.RateWindow, httprate.WithKeyFuncs(httprate.KeyByRealIP)))
		}
		r.Use(s.metricsMiddleware)
		r.Use(auth.Middleware)

		r.Post("/interests/toggle", s.handleToggleInterest)
		r.Get("/commonalities", s.handleGetCommonalities)

		r.Route("/participants/{id}", func(r chi.Router) {
			r.Put("/", s.handleUpsertParticipant)
			r.Get("/interests", s.handleListInterests)
			r.Get("/interests/pending", s.handleHasPendingInterest)
			r.Get("/connections", s.handleGetConnections)
			r.Get("/candidates", s.handleDiscoverCandidates)
			r.Post("/programs/{program}/pause", s.handleSetProgramPause(true))
			r.Post("/programs/{program}/resume", s.handleSetProgramPause(false))
			r.Post("/blocks/{target}", s.handleBlock(false))
			r.Delete("/blocks/{target}", s.handleBlock(true))
		})

		r.Post("/admin/reconcile", s.handleReconcile)
	})

	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("http: server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info().Str("addr", s.config.Addr).Msg("HTTP server starting")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
