// Package backend resolves where the backend service lives.
package backend

import (
	"strings"

	"github.com/caarlos0/env/v11"
)

// DefaultOrigin is used when no backend variable is configured.
const DefaultOrigin = "http://localhost:4100"

// VersionPrefix is the fixed path prefix of the backend's versioned API.
const VersionPrefix = "/api/v1"

// Env holds every variable that may carry the backend origin. These are
// unprefixed because the web app and the gateway share them.
type Env struct {
	BaseURL       string `env:"BACKEND_BASE_URL"`
	PublicBaseURL string `env:"NEXT_PUBLIC_BACKEND_BASE_URL"`
	URL           string `env:"BACKEND_URL"`
	AppEnv        string `env:"APP_ENV"`
	LocalURL      string `env:"BACKEND_URL_LOCAL"`
	ProductionURL string `env:"BACKEND_URL_PRODUCTION"`
}

// candidates returns the configured origins, highest precedence first.
func (e Env) candidates() []string {
	envSpecific := e.LocalURL
	if strings.EqualFold(strings.TrimSpace(e.AppEnv), "production") {
		envSpecific = e.ProductionURL
	}
	return []string{e.BaseURL, e.PublicBaseURL, e.URL, envSpecific}
}

// Endpoint is a backend origin plus an optional fixed path prefix.
// Neither part ends with a slash.
type Endpoint struct {
	Origin string
	Prefix string
}

// Base returns the origin joined with the prefix.
func (e Endpoint) Base() string {
	return e.Origin + e.Prefix
}

// URL joins path onto the endpoint. A path that already starts with the
// prefix does not get it twice.
func (e Endpoint) URL(path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if e.Prefix != "" && hasPathPrefix(path, e.Prefix) {
		return e.Origin + path
	}
	return e.Origin + e.Prefix + path
}

func (e Endpoint) String() string {
	return e.Base()
}

// Resolver resolves the backend endpoint from process configuration.
type Resolver struct {
	// Environment overrides the process environment when non-nil.
	Environment map[string]string
}

// NewResolver creates a resolver reading the process environment.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the unversioned backend endpoint. It never fails; with no
// usable variable it returns DefaultOrigin.
func (r *Resolver) Resolve() Endpoint {
	return Endpoint{Origin: r.origin()}
}

// ResolveVersioned returns the endpoint with VersionPrefix applied exactly once.
func (r *Resolver) ResolveVersioned() Endpoint {
	return Endpoint{Origin: r.origin(), Prefix: VersionPrefix}
}

func (r *Resolver) origin() string {
	var e Env
	opts := env.Options{}
	if r != nil && r.Environment != nil {
		opts.Environment = r.Environment
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return DefaultOrigin
	}

	for _, candidate := range e.candidates() {
		if origin := normalizeOrigin(candidate); origin != "" {
			return origin
		}
	}
	return DefaultOrigin
}

// normalizeOrigin trims whitespace and trailing slashes and removes a trailing
// VersionPrefix so the prefix can be re-applied exactly once.
func normalizeOrigin(raw string) string {
	origin := strings.TrimRight(strings.TrimSpace(raw), "/")
	for strings.HasSuffix(origin, VersionPrefix) {
		origin = strings.TrimRight(strings.TrimSuffix(origin, VersionPrefix), "/")
	}
	return origin
}

func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/' || path[len(prefix)] == '?'
}
