package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bizplan/internal/config"
	"bizplan/internal/core"
	"bizplan/internal/logger"
	"bizplan/internal/section"
	"bizplan/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SectionGenerator writes one business-plan section.
type SectionGenerator interface {
	GenerateSection(ctx context.Context, sectionName string, state core.SectionState, opts section.Options) core.SectionResponse
}

// UsageReporter reports per-session usage.
type UsageReporter interface {
	Stats(sessionID string) (*store.UsageStats, error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	sections   SectionGenerator
	usage      UsageReporter
	config     config.Server
	model      string
	started    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithUsage exposes session usage under /api/usage.
func WithUsage(u UsageReporter) Option {
	return func(s *Server) { s.usage = u }
}

// WithModel names the model reported by /api/status and priced by /api/estimate.
func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// New creates a new HTTP server instance
func New(sections SectionGenerator, cfg config.Server, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		sections: sections,
		config:   cfg,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	// Generation can take as long as the model timeout; leave a margin
	// below the write timeout so the client gets a response.
	timeout := s.config.WriteTimeoutDuration() - 5*time.Second
	if timeout <= 0 {
		timeout = s.config.WriteTimeoutDuration()
	}
	s.router.Use(middleware.Timeout(timeout))

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/status", s.handleStatus)
		r.Get("/length-types", s.handleLengthTypes)
		r.Post("/sections/{name}", s.handleGenerateSection)
		r.Post("/estimate", s.handleEstimate)
		r.Get("/usage/{session}", s.handleUsage)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout.String(),
		"write_timeout", s.httpServer.WriteTimeout.String(),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
