package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"igsaved/pkg/config"
	"igsaved/pkg/logger"
	"igsaved/pkg/metrics"
)

const serviceName = "igsaved"

// Server is the HTTP front of the scraper
type Server struct {
	router *gin.Engine
	server *http.Server
	cfg    config.ServerConfig
	logger logger.Logger
}

// NewServer builds the router with recovery, request ID and logging
// middleware, in that order. gatherer backs /metrics; nil uses the default
// registry.
func NewServer(cfg config.ServerConfig, runner Runner, gatherer prometheus.Gatherer, version string, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "api")
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))

	h := NewHandler(runner, version, log)
	router.POST("/scrape", h.Scrape)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: log,
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until the server is shut down
func (s *Server) Start() error {
	s.logger.InfoWithFields("Starting HTTP server", map[string]interface{}{
		"address":       s.server.Addr,
		"read_timeout":  s.server.ReadTimeout.String(),
		"write_timeout": s.server.WriteTimeout.String(),
	})

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, up to
// the configured shutdown timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.WithField("timeout", s.cfg.ShutdownTimeout.String()).Info("Shutting down HTTP server")

	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

// RunWithGracefulShutdown serves until SIGINT, SIGTERM or ctx is done,
// then shuts down
func (s *Server) RunWithGracefulShutdown(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-ctx.Done():
		s.logger.Info("Context cancelled, shutting down")
	}

	// ctx may already be done; shutdown gets its own deadline
	return s.Shutdown(context.Background())
}
