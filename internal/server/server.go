// Package server exposes the ledger as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ArionMiles/parcelas/pkg/auth"
	"github.com/ArionMiles/parcelas/pkg/ledger"
)

const shutdownTimeout = 10 * time.Second

// Config holds the HTTP settings.
type Config struct {
	Addr string
	// AllowedOrigins lists the CORS origins. Empty allows none.
	AllowedOrigins []string
	// RateLimit is requests per minute per client IP. Zero disables limiting.
	RateLimit int
}

// Server serves the API.
type Server struct {
	cfg     Config
	ledger  *ledger.Service
	issuer  *auth.Issuer
	limiter *rateLimiter
	engine  *gin.Engine
	logger  *slog.Logger
}

// New builds the router.
func New(svc *ledger.Service, issuer *auth.Issuer, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		ledger: svc,
		issuer: issuer,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))

	if len(s.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if s.limiter != nil {
		router.Use(s.limiter.middleware())
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/categories", s.optionalAuth(), s.categories)
		v1.POST("/auth/register", s.register)
		v1.POST("/auth/login", s.login)

		protected := v1.Group("/")
		protected.Use(s.requireAuth())
		{
			protected.GET("/installments", s.listInstallments)
			protected.PUT("/installments/:id", s.editInstallment)
			protected.DELETE("/installments/:id", s.deleteInstallment)
			protected.POST("/charges", s.addCharge)
			protected.GET("/reports/summary", s.summary)
		}
	}
	return router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.limiter != nil {
		go s.limiter.sweep(ctx, time.Minute)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
