package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/decoderlabs/decoder-gateway/internal/adapters/config/file"
	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/pkg/config"
)

// ConfigProvider loads configuration and reports changes.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		provider, err := file.NewProvider(path, g.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ConfigProvider) Option {
	return func(g *Gateway) error {
		g.config = provider
		return nil
	}
}

// WithLogger sets a custom logger. Set it before WithFileConfig so the
// provider logs through it.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		g.logger = logger
		return nil
	}
}

// WithMetricsRegistry registers the gateway collectors on registry instead of
// a private one.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(g *Gateway) error {
		g.registry = registry
		return nil
	}
}

// WithHTTPClient sets the client used for backend calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) error {
		g.client = client
		return nil
	}
}

// WithBackendResolver sets where the backend is looked up.
func WithBackendResolver(resolver *backend.Resolver) Option {
	return func(g *Gateway) error {
		g.backend = resolver
		return nil
	}
}
