// Package server implements the elevation HTTP API.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/twpayne/go-elevation-api"
	"github.com/twpayne/go-elevation-api/internal/telemetry"
)

//go:embed templates/*.html
var templatesFS embed.FS

// A Resolver resolves points to elevations.
type Resolver interface {
	Resolve(ctx context.Context, points []elevation.Point) ([]elevation.Elevation, error)
}

// A Server serves the elevation API.
type Server struct {
	resolver  Resolver
	maxPoints int
	logger    *zap.Logger
	telemetry bool
	engine    *gin.Engine
}

// An Option sets an option on a Server.
type Option func(*Server)

// WithMaxPoints sets the maximum number of points per request.
func WithMaxPoints(maxPoints int) Option {
	return func(s *Server) {
		s.maxPoints = maxPoints
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTelemetry enables tracing of requests.
func WithTelemetry(telemetry bool) Option {
	return func(s *Server) {
		s.telemetry = telemetry
	}
}

// New returns a new Server.
func New(resolver Resolver, options ...Option) *Server {
	s := &Server{
		resolver:  resolver,
		maxPoints: elevation.MaxPoints,
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if s.telemetry {
		engine.Use(telemetry.GinMiddleware())
	}
	engine.Use(ginZapLogger(s.logger))
	engine.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	engine.GET("/", s.index)
	engine.GET("/api/elevation", s.elevations)
	engine.GET("/healthz", s.healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine = engine

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Timeouts are the HTTP server timeouts.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Run serves handler on addr until ctx is done, then shuts down gracefully
// within shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, timeouts Timeouts, shutdownTimeout time.Duration, logger *zap.Logger) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  timeouts.Read,
		WriteTimeout: timeouts.Write,
		IdleTimeout:  timeouts.Idle,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
