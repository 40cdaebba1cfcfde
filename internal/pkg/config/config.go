package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every config environment variable. Nested keys use a
// double underscore: DECODER_SERVER__PORT sets server.port.
const EnvPrefix = "DECODER_"

// Backend modes.
const (
	ModeLive = "live"
	ModeMock = "mock"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Backend    BackendConfig    `koanf:"backend"`
	Cookies    CookieConfig     `koanf:"cookies"`
	Onboarding OnboardingConfig `koanf:"onboarding"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Routes     []RouteConfig    `koanf:"routes"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

type BackendConfig struct {
	Mode            string        `koanf:"mode"` // live, mock
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`
	CookieName      string        `koanf:"cookie_name"` // cookie sent to cookie-auth endpoints
}

type CookieConfig struct {
	Secure bool `koanf:"secure"`
}

type OnboardingConfig struct {
	CacheSize      int           `koanf:"cache_size"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	RefreshTimeout time.Duration `koanf:"refresh_timeout"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// RouteConfig declares one proxied route. An entry with the same method and
// path as a built-in route replaces it.
type RouteConfig struct {
	Name        string         `koanf:"name"`
	Method      string         `koanf:"method"`
	Path        string         `koanf:"path"`         // chi pattern, e.g. /api/checkout/{id}/confirm
	BackendPath string         `koanf:"backend_path"` // may reference path params, query params and ${VAR}
	Auth        string         `koanf:"auth"`         // public, required
	CookieAuth  bool           `koanf:"cookie_auth"`
	RequireJSON bool           `koanf:"require_json"`
	Required    []string       `koanf:"required"` // JSON body fields that must be non-empty
	Fixture     *FixtureConfig `koanf:"fixture"`  // served in mock mode
}

type FixtureConfig struct {
	Status      int    `koanf:"status"`
	ContentType string `koanf:"content_type"`
	Body        string `koanf:"body"`
}

var defaults = map[string]any{
	"server.port":                8080,
	"server.request_timeout":     "30s",
	"server.shutdown_timeout":    "30s",
	"backend.mode":               ModeLive,
	"backend.upstream_timeout":   "15s",
	"backend.cookie_name":        "accessToken",
	"cookies.secure":             true,
	"onboarding.cache_size":      1024,
	"onboarding.cache_ttl":       "10m",
	"onboarding.refresh_timeout": "10s",
	"telemetry.enabled":          false,
	"telemetry.service_name":     "decoder-gateway",
	"metrics.enabled":            true,
	"metrics.path":               "/metrics",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path, then applies DECODER_ environment overrides and
// defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Routes {
		cfg.Routes[i].BackendPath = substituteEnvVars(cfg.Routes[i].BackendPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Backend.Mode {
	case ModeLive, ModeMock:
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q", ModeLive, ModeMock, c.Backend.Mode)
	}

	for i, r := range c.Routes {
		if r.Method == "" || r.Path == "" || r.BackendPath == "" {
			return fmt.Errorf("routes[%d]: method, path and backend_path are required", i)
		}
		if !strings.HasPrefix(r.Path, "/") || !strings.HasPrefix(r.BackendPath, "/") {
			return fmt.Errorf("routes[%d]: path and backend_path must start with /", i)
		}
		switch strings.ToUpper(r.Method) {
		case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE":
		default:
			return fmt.Errorf("routes[%d]: unsupported method %q", i, r.Method)
		}
		switch r.Auth {
		case "", "public", "required":
		default:
			return fmt.Errorf("routes[%d]: auth must be public or required, got %q", i, r.Auth)
		}
	}

	return nil
}

// IsMock reports whether fixtures are served instead of the live backend.
func (c *Config) IsMock() bool {
	return c.Backend.Mode == ModeMock
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
