// Package api provides the ingest service's HTTP surface: the five
// ingest envelopes, the query DSL endpoint, and the health/metrics
// routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liminalqa/liminal/internal/api/middleware"
	"github.com/liminalqa/liminal/internal/ingest"
	"github.com/liminalqa/liminal/internal/metrics"
	"github.com/liminalqa/liminal/internal/store"
)

// BatchPublisher enqueues a decoded batch envelope onto the async
// transport supplementing `/ingest/batch` (see internal/asyncingest).
// A nil BatchPublisher disables `POST /ingest/batch/async`.
type BatchPublisher interface {
	Publish(ctx context.Context, runKey string, payload []byte) error
}

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	logger         *slog.Logger
	config         *ServerConfig
	startTime      time.Time
	rateLimiter    middleware.RateLimiter
	ingest         *ingest.Service
	store          *store.Store
	metrics        *metrics.Registry
	asyncPublisher BatchPublisher
}

// NewServer creates a new HTTP server instance with structured logging and
// middleware stack.
//
// Dependencies are injected explicitly rather than being part of
// ServerConfig, separating configuration (what) from dependencies (how).
//
//   - cfg: pure server configuration (ports, timeouts, CORS settings)
//   - store: the Fact Store's read surface, shared with svc (REQUIRED)
//   - svc: the Ingest Service the /ingest/* routes write through (REQUIRED)
//   - reg: the Metrics Registry exposed at GET /metrics (REQUIRED)
//   - rateLimiter: rate limiter implementation (nil disables rate limiting)
//   - asyncPublisher: async batch transport (nil disables
//     `/ingest/batch/async`, returning 503)
func NewServer(
	cfg *ServerConfig,
	st *store.Store,
	svc *ingest.Service,
	reg *metrics.Registry,
	rateLimiter middleware.RateLimiter,
	asyncPublisher BatchPublisher,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if st == nil || svc == nil || reg == nil {
		logger.Error("store, ingest service, and metrics registry are required to start the server")
		panic("liminal: store/ingest/metrics cannot be nil - this indicates a configuration error")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:         logger,
		config:         cfg,
		rateLimiter:    rateLimiter,
		ingest:         svc,
		store:          st,
		metrics:        reg,
		asyncPublisher: asyncPublisher,
	}

	server.setupRoutes(mux)

	if cfg.AuthToken != "" {
		logger.Info("bearer token authentication enabled")
	} else {
		logger.Warn("LIMINAL_AUTH_TOKEN not configured - running in open mode, every request is accepted")
	}

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("rate limiter not configured - rate limiting middleware disabled")
	}

	if asyncPublisher != nil {
		logger.Info("async batch transport enabled", slog.String("topic", "liminal.batches"))
	} else {
		logger.Warn("LIMINAL_KAFKA_BROKERS not configured - /ingest/batch/async disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. BearerAuth - gate /ingest/* and /query behind the configured token
	//   4. RateLimit - block requests before expensive operations (optional)
	//   5. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   6. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithBearerAuth(cfg.AuthToken, logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	server.httpServer = httpServer

	return server
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting liminal ingest service",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeDependency("rate limiter", s.rateLimiter)
	s.closeDependency("async batch publisher", s.asyncPublisher)

	s.logger.Info("server shutdown completed successfully")

	return nil
}

// closeDependency attempts to close a server dependency that implements
// io.Closer. Logs the operation and its result. Errors are logged but
// don't stop shutdown (best-effort).
func (s *Server) closeDependency(name string, dep interface{}) {
	if dep == nil {
		return
	}

	closer, ok := dep.(io.Closer)
	if !ok {
		return
	}

	s.logger.Info("closing " + name)

	if err := closer.Close(); err != nil {
		s.logger.Error("failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info(name + " closed successfully")
}
