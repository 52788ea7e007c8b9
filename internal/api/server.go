// Package api is the HTTP transport for inboxd. Handlers validate and
// translate requests into allocation, grace, label and tenant calls and map
// the typed failures back onto status codes.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zulandar/inboxd/internal/allocation"
	"github.com/zulandar/inboxd/internal/grace"
	"gorm.io/gorm"
)

// Options holds the dependencies of the HTTP server.
type Options struct {
	DB     *gorm.DB
	Engine *allocation.Engine
	Ledger *grace.Ledger
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// GraceMinutes is the hold applied when an operator goes OFFLINE.
	GraceMinutes int
	Port         int
	Out          io.Writer
}

func (o *Options) check() error {
	if o.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if o.Engine == nil {
		return fmt.Errorf("api: engine is required")
	}
	if o.Ledger == nil {
		return fmt.Errorf("api: grace ledger is required")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.GraceMinutes <= 0 {
		o.GraceMinutes = grace.DefaultMinutes
	}
	if o.Port <= 0 {
		o.Port = 8080
	}
	return nil
}

// NewRouter builds the gin router with every route registered.
func NewRouter(opts Options) (*gin.Engine, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger))
	registerRoutes(router, &handlers{
		db:           opts.DB,
		engine:       opts.Engine,
		ledger:       opts.Ledger,
		log:          opts.Logger,
		graceMinutes: opts.GraceMinutes,
	}, opts.Gatherer)
	return router, nil
}

// Start serves the API. It blocks until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, opts Options) error {
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "inboxd listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// requestLogger logs one line per request. Server errors log at warn.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.Log(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
