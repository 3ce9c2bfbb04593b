// Package api exposes the settings core over a local HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gm-agent-org/gm-settings/pkg/api/middleware"
	"github.com/gm-agent-org/gm-settings/pkg/notify"
	"github.com/gm-agent-org/gm-settings/pkg/settings"
)

// Config defines the HTTP server settings.
type Config struct {
	Addr    string
	APIKey  string
	Version string
}

// Server hosts the Gin engine.
type Server struct {
	engine *gin.Engine
	config Config
	agg    *settings.Aggregator
	center *notify.Center
	log    *slog.Logger
}

// NewServer constructs the HTTP API server.
func NewServer(cfg Config, agg *settings.Aggregator, center *notify.Center, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if center == nil {
		center = notify.NewCenter(log)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(log))

	srv := &Server{
		engine: engine,
		config: cfg,
		agg:    agg,
		center: center,
		log:    log,
	}

	srv.setupRoutes()

	return srv
}

// Engine returns the underlying Gin engine (for http.Server).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the configured address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Info("http api listening", "addr", s.config.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http api stopped")
	return nil
}
