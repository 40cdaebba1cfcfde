package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRequestTimeout bounds every inbound request.
const DefaultRequestTimeout = 30 * time.Second

// Options configures the server's middleware chain.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	AllowedOrigins []string
	ServiceName    string
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	mu   sync.Mutex
	http *http.Server
}

func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "decoder-gateway"
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(opts.AllowedOrigins))
	}
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, opts.ServiceName)
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

// Start serves h until Shutdown is called. A nil h serves the router.
func (s *Server) Start(h http.Handler) error {
	if h == nil {
		h = s.Router
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
