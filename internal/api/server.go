// Package api exposes the per-kind query and refresh endpoints over gin.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/usecase"
)

const adminTokenHeader = "X-Admin-Token"

// ItemReader is the read side of the item store.
type ItemReader interface {
	List(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Item, error)
	Sources(ctx context.Context, kind domain.Kind) ([]string, error)
}

// Refresher runs an on-demand fetch and summarize pass.
type Refresher interface {
	Refresh(ctx context.Context, req usecase.RefreshRequest, emit func(string)) usecase.RefreshReport
}

// Deps collects what the handlers need.
type Deps struct {
	Items     ItemReader
	Refresher Refresher
	Logger    *slog.Logger
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	cfg    config.HTTPConfig
	engine *gin.Engine
	logger *slog.Logger
}

// NewServer builds the router with every route registered.
func NewServer(cfg config.HTTPConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	h := &handler{items: deps.Items, refresher: deps.Refresher, logger: logger}

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := engine.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, kind := range domain.Kinds() {
		group := api.Group("/" + kind.Plural())
		group.GET("", h.list(kind))
		group.GET("/sources", h.sources(kind))

		refresh := group.Group("/refresh", adminOnly(cfg.AdminToken))
		refresh.POST("", h.refresh(kind))
		refresh.GET("/stream", h.refreshStream(kind))
	}

	return &Server{cfg: cfg, engine: engine, logger: logger}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// adminOnly rejects requests without the configured token. An empty token
// leaves the routes open.
func adminOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.Query("token")
		if got == "" {
			got = c.GetHeader(adminTokenHeader)
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
