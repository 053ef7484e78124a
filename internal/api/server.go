// Package api exposes the outreach backend over HTTP: campaign and contact
// management, enrollment, the scheduler tick trigger and the provider
// webhook. All state-changing routes sit under /api/v1 behind API-key auth.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalcrest/outreach/internal/drip"
	"github.com/signalcrest/outreach/internal/metrics"
	"github.com/signalcrest/outreach/internal/repository"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	engine     *drip.Engine

	campaigns    *repository.CampaignRepository
	contacts     *repository.ContactRepository
	enrollments  *repository.EnrollmentRepository
	sends        *repository.SendRepository
	suppressions *repository.SuppressionRepository
	settings     *repository.SettingsRepository

	listenAddr string
	apiKey     string
	batchSize  int
	startTime  time.Time
}

// Options configures the server beyond its collaborators
type Options struct {
	ListenAddr string
	APIKey     string
	BatchSize  int
}

// NewServer creates the API server and registers all routes
func NewServer(db *sql.DB, engine *drip.Engine, m *metrics.Metrics, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		logger:       logger,
		metrics:      m,
		engine:       engine,
		campaigns:    repository.NewCampaignRepository(db),
		contacts:     repository.NewContactRepository(db),
		enrollments:  repository.NewEnrollmentRepository(db),
		sends:        repository.NewSendRepository(db),
		suppressions: repository.NewSuppressionRepository(db),
		settings:     repository.NewSettingsRepository(db),
		listenAddr:   opts.ListenAddr,
		apiKey:       opts.APIKey,
		batchSize:    opts.BatchSize,
		startTime:    time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// No auth: health, metrics and the provider webhook (verified by secret
	// in production deployments, terminated at the ingress)
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	s.router.Post("/webhooks/email", s.handleWebhook)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/marketing/tick", s.handleTick)
		r.Post("/marketing/tick", s.handleTick)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Get("/{id}", s.handleGetCampaign)
			r.Put("/{id}", s.handleUpdateCampaign)
			r.Delete("/{id}", s.handleDeleteCampaign)
			r.Get("/{id}/steps", s.handleListSteps)
			r.Post("/{id}/steps", s.handleAddStep)
			r.Delete("/{id}/steps/{stepID}", s.handleDeleteStep)
			r.Post("/{id}/enroll", s.handleEnroll)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.handleListContacts)
			r.Post("/", s.handleCreateContact)
			r.Get("/{id}", s.handleGetContact)
			r.Put("/{id}", s.handleUpdateContact)
			r.Delete("/{id}", s.handleDeleteContact)
		})

		r.Get("/enrollments", s.handleListEnrollments)
		r.Post("/enrollments/{id}/pause", s.handlePauseEnrollment)
		r.Post("/enrollments/{id}/resume", s.handleResumeEnrollment)

		r.Get("/sends", s.handleListSends)

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", s.handleListSuppressions)
			r.Post("/", s.handleAddSuppression)
			r.Delete("/{contactID}", s.handleRemoveSuppression)
		})

		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)
	})
}

// Handler returns the root handler, used directly in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.listenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
