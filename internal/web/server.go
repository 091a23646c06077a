// Package web serves the JSON API and the progress event stream used
// by the thin browser UI.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coldmailer/internal/config"
	"coldmailer/internal/mailer"
	"coldmailer/internal/metrics"
	"coldmailer/internal/session"
)

// Server is the HTTP server for the web UI and API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	mailer     *mailer.Mailer
	sessions   *session.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
	startTime  time.Time

	// bulkSlots bounds concurrent background bulk runs.
	bulkSlots chan struct{}
}

// NewServer creates the web server over the shared mailer and session
// registry.
func NewServer(cfg *config.Config, m *mailer.Mailer, sessions *session.Registry,
	mtr *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		mailer:    m,
		sessions:  sessions,
		metrics:   mtr,
		logger:    logger.With("component", "web"),
		startTime: time.Now(),
		bulkSlots: make(chan struct{}, cfg.Web.BulkWorkers),
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

	s.router.Get("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleHistoryClear)

		r.Get("/contacts", s.handleContactList)
		r.Post("/contacts", s.handleContactCreate)
		r.Get("/contacts/{id}", s.handleContactGet)
		r.Put("/contacts/{id}", s.handleContactUpdate)
		r.Delete("/contacts/{id}", s.handleContactDelete)

		r.Get("/templates", s.handleTemplateList)
		r.Get("/templates/{name}/preview", s.handleTemplatePreview)

		r.Post("/send", s.handleSend)
		r.Post("/send/test", s.handleSendTest)

		r.Post("/bulk", s.handleBulkStart)
		r.Get("/bulk/{id}", s.handleBulkStatus)
		r.Get("/bulk/{id}/events", s.handleBulkEvents)
	})
}

// Router returns the HTTP handler, used directly in tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Web.ListenAddr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting web server", "addr", s.cfg.Web.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
