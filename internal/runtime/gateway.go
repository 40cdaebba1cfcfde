// Package runtime provides the core Gateway struct and lifecycle management
// for the decoder gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/journey"
	"github.com/decoderlabs/decoder-gateway/internal/onboarding"
	"github.com/decoderlabs/decoder-gateway/internal/pkg/config"
	"github.com/decoderlabs/decoder-gateway/internal/proxy"
	"github.com/decoderlabs/decoder-gateway/internal/routes"
	"github.com/decoderlabs/decoder-gateway/internal/server"
	"github.com/decoderlabs/decoder-gateway/internal/session"
	"github.com/decoderlabs/decoder-gateway/internal/telemetry"
)

// Gateway is the main entry point for running the decoder gateway.
// It manages configuration, the route table, onboarding stores, and HTTP
// server lifecycle. Gateway can be embedded in larger applications or run
// standalone.
type Gateway struct {
	// Dependencies (injected via options)
	config   ConfigProvider
	logger   *slog.Logger
	registry *prometheus.Registry
	client   *http.Client
	backend  *backend.Resolver

	// Internal state
	cfg            *config.Config
	metrics        *telemetry.Metrics
	routes         *routes.Router
	stores         *onboarding.Registry
	server         *server.Server
	shutdownTracer func(context.Context) error

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new Gateway with the given options.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.config == nil {
		return nil, errors.New("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	if gw.backend == nil {
		gw.backend = backend.NewResolver()
	}

	return gw, nil
}

// Init loads the configuration and assembles the HTTP handler without
// listening. Start calls it; calling it again is a no-op.
func (g *Gateway) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.init(ctx)
}

func (g *Gateway) init(ctx context.Context) error {
	if g.cfg != nil {
		return nil
	}

	cfg, err := g.config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer(telemetry.TracerOptions{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}, g.logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	g.shutdownTracer = shutdownTracer

	if cfg.IsMock() {
		g.logger.Warn("backend mode is mock, serving route fixtures instead of the backend")
	} else {
		g.logger.Info("backend resolved", slog.String("origin", g.backend.Resolve().Origin))
	}

	g.assemble(cfg)
	g.cfg = cfg
	return nil
}

// assemble builds the handlers for cfg.
func (g *Gateway) assemble(cfg *config.Config) {
	if cfg.Metrics.Enabled {
		g.metrics = telemetry.NewMetrics(g.registry)
	}

	proxyOpts := []proxy.Option{proxy.WithUpstreamTimeout(cfg.Backend.UpstreamTimeout)}
	if g.client != nil {
		proxyOpts = append(proxyOpts, proxy.WithHTTPClient(g.client))
	}
	upstream := proxy.New(proxyOpts...)

	table := routes.Build(cfg)
	g.routes = routes.NewRouter(&routes.Proxy{
		Gateway:    upstream,
		Backend:    g.backend,
		Mock:       cfg.IsMock(),
		CookieName: cfg.Backend.CookieName,
		Metrics:    g.metrics,
	}, table)

	g.stores = onboarding.NewRegistry(
		cfg.Onboarding.CacheSize,
		cfg.Onboarding.CacheTTL,
		g.storeFactory(cfg, upstream, table),
	)

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ServiceName:    cfg.Telemetry.ServiceName,
	}, g.logger)

	r := srv.Router
	r.Use(server.CredentialMiddleware(nil))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		codec.WriteJSON(w, http.StatusOK, codec.OK{OK: true})
	})
	if g.metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, g.metrics.Handler())
	}

	r.Method(http.MethodGet, "/api/auth/session", &session.Validator{
		Gateway: upstream,
		Backend: g.backend,
		Mock:    cfg.IsMock(),
	})
	r.Method(http.MethodPost, "/api/auth/logout", &session.Logout{
		SecureCookies: cfg.Cookies.Secure,
		OnLogout:      g.stores.Forget,
	})
	r.Handle("/api/journey", &journey.Handler{SecureCookies: cfg.Cookies.Secure})
	r.Method(http.MethodGet, "/api/onboarding/next",
		server.RequireCredential(&onboarding.NextHandler{Registry: g.stores}))

	// Everything else goes to the route table, which answers its own 404/405.
	r.NotFound(g.routes.ServeHTTP)
	r.MethodNotAllowed(g.routes.ServeHTTP)

	g.server = srv

	g.logger.Info("routes registered", slog.Int("count", len(table)))
}

func (g *Gateway) storeFactory(cfg *config.Config, upstream *proxy.Gateway, table []routes.Route) onboarding.StoreFactory {
	opts := []onboarding.StoreOption{
		onboarding.WithRefreshTimeout(cfg.Onboarding.RefreshTimeout),
		onboarding.WithLogger(g.logger),
		onboarding.WithResultObserver(g.metrics.ObserveRefresh),
	}

	if cfg.IsMock() {
		fetcher := onboarding.FixtureFetcher{Body: statusFixture(table)}
		return func(*credential.Credential) *onboarding.Store {
			return onboarding.NewStore(fetcher, opts...)
		}
	}

	return func(cred *credential.Credential) *onboarding.Store {
		return onboarding.NewStore(&onboarding.HTTPFetcher{
			Gateway:    upstream,
			Backend:    g.backend,
			Credential: cred,
		}, opts...)
	}
}

// statusFixture returns the fixture body of the route that proxies the
// backend onboarding status, if any.
func statusFixture(table []routes.Route) []byte {
	statusPath := backend.VersionPrefix + onboarding.StatusPath
	for _, r := range table {
		if r.Method == http.MethodGet && r.BackendPath == statusPath && r.Fixture != nil {
			return r.Fixture.Body
		}
	}
	return nil
}

// Handler returns the assembled HTTP handler, or nil before Init.
func (g *Gateway) Handler() http.Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.server == nil {
		return nil
	}
	return g.server.Router
}

// Config returns the configuration the gateway was started with, or nil
// before Init.
func (g *Gateway) Config() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Start initializes the gateway, starts the HTTP server in the background
// and watches the configuration for changes.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return errors.New("gateway already started")
	}
	if err := g.init(ctx); err != nil {
		return err
	}

	g.ctx, g.cancel = context.WithCancel(ctx)

	srv := g.server
	go func() {
		if err := srv.Start(nil); err != nil {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Watch for config changes
	go g.watchConfig()

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.String("backend_mode", g.cfg.Backend.Mode))

	return nil
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}

	// Stop HTTP server
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	if g.config != nil {
		if err := g.config.Close(); err != nil {
			g.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	if g.shutdownTracer != nil {
		if err := g.shutdownTracer(ctx); err != nil {
			g.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

// watchConfig watches for config changes and reloads.
func (g *Gateway) watchConfig() {
	onChange := func(newCfg *config.Config) {
		g.logger.Info("config changed, reloading")
		g.reload(newCfg)
	}

	if err := g.config.Watch(g.ctx, onChange); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload swaps in the route table from cfg. Other settings take effect on
// restart.
func (g *Gateway) reload(cfg *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.routes == nil {
		return
	}
	if g.cfg != nil && cfg.Backend.Mode != g.cfg.Backend.Mode {
		g.logger.Warn("backend mode change requires a restart",
			slog.String("running", g.cfg.Backend.Mode),
			slog.String("configured", cfg.Backend.Mode))
	}

	table := routes.Build(cfg)
	g.routes.Load(table)

	g.logger.Info("reload complete", slog.Int("routes", len(table)))
}
