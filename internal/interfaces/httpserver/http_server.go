// Package httpserver exposes health, metrics and a read-only JSON API over gin.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/metrics"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/httpserver/handlers"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/httpserver/middlewares"
)

type Config struct {
	Port            int
	APIKey          string
	ServiceName     string
	ShutdownTimeout time.Duration
}

// ReadinessCheck reports whether dependencies (the database) are reachable.
type ReadinessCheck func(ctx context.Context) error

type HTTPServer struct {
	engine *gin.Engine
	cfg    Config
	log    zerolog.Logger
}

func NewHTTPServer(
	cfg Config,
	ready ReadinessCheck,
	searchHandler *handlers.SearchHandler,
	channelHandler *handlers.ChannelHandler,
	statusHandler *handlers.StatusHandler,
	log zerolog.Logger,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	log = log.With().Str("component", "http").Logger()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.RequestID())
	engine.Use(middlewares.Tracing(cfg.ServiceName))
	engine.Use(middlewares.Logging(log))
	engine.Use(middlewares.Metrics())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := engine.Group("/v1", middlewares.APIKey(cfg.APIKey))
	v1.GET("/search", searchHandler.Search)
	v1.GET("/channels", channelHandler.List)
	v1.GET("/status", statusHandler.Status)

	return &HTTPServer{engine: engine, cfg: cfg, log: log}
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down within ShutdownTimeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return <-errCh
}
