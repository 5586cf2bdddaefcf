// Package api provides the HTTP API server exposing the aggregated
// portfolio and its risk snapshot as JSON.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/portfolio-tracker/internal/config"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/service"
)

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	portfolio  *service.PortfolioService
	logger     *logging.Logger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.ServerConfig, portfolio *service.PortfolioService, logger *logging.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		portfolio: portfolio,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	v1.HandleFunc("/risk", s.handleRisk).Methods(http.MethodGet)
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
