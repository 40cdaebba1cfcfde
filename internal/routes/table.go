// Package routes declares the proxied route table and serves it.
package routes

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/decoderlabs/decoder-gateway/internal/pkg/config"
)

// Auth is a route's credential requirement.
type Auth string

const (
	AuthPublic   Auth = "public"
	AuthRequired Auth = "required"
)

// Fixture is the canned response served for a route in mock mode.
type Fixture struct {
	Status      int
	ContentType string
	Body        []byte
}

// Route maps one client-facing endpoint onto a backend path.
//
// Path is a chi pattern. Placeholders in BackendPath are filled from the
// path parameters of the same name, or else from the query string, in which
// case the query parameter is consumed and not forwarded.
type Route struct {
	Name        string
	Method      string
	Path        string
	BackendPath string
	Auth        Auth
	CookieAuth  bool
	RequireJSON bool
	Required    []string
	Fixture     *Fixture
}

// Key identifies a route by method and path.
func (r Route) Key() string {
	return strings.ToUpper(r.Method) + " " + r.Path
}

var placeholderPattern = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)

// placeholders returns the {name} parameters in pattern, in order.
func placeholders(pattern string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(pattern, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Defaults is the built-in route table.
func Defaults() []Route {
	return []Route{
		{
			Name:        "auth.register",
			Method:      http.MethodPost,
			Path:        "/api/auth/register",
			BackendPath: "/auth/register",
			Auth:        AuthPublic,
			RequireJSON: true,
		},
		{
			Name:        "auth.register.exists",
			Method:      http.MethodPost,
			Path:        "/api/auth/register/exists",
			BackendPath: "/api/v1/auth/register/exists",
			Auth:        AuthPublic,
			Required:    []string{"email"},
			Fixture:     jsonFixture(`{"exists":false}`),
		},
		{
			Name:        "checkout.start",
			Method:      http.MethodPost,
			Path:        "/api/checkout/start",
			BackendPath: "/api/v1/checkout/start",
			Auth:        AuthRequired,
		},
		{
			Name:        "checkout.confirm",
			Method:      http.MethodPost,
			Path:        "/api/checkout/{id}/confirm",
			BackendPath: "/api/v1/checkout/{id}/confirm",
			Auth:        AuthRequired,
		},
		{
			Name:        "onboarding.status",
			Method:      http.MethodGet,
			Path:        "/api/v1/onboarding/status",
			BackendPath: "/api/v1/onboarding/status",
			Auth:        AuthRequired,
			Fixture: jsonFixture(`{"dialogueNickname":null,"nicknameDefined":false,` +
				`"onboardingStage":"NICKNAME_REQUIRED","subscriptionActive":false,` +
				`"tutorialCompleted":false,"creditsBalance":0}`),
		},
		{
			Name:        "onboarding.nickname",
			Method:      http.MethodPatch,
			Path:        "/api/v1/onboarding/dialogue-nickname",
			BackendPath: "/api/v1/onboarding/dialogue-nickname",
			Auth:        AuthRequired,
			Required:    []string{"dialogueNickname"},
		},
		{
			Name:        "ocr.pipeline.status",
			Method:      http.MethodGet,
			Path:        "/api/ocr/pipeline/status",
			BackendPath: "/api/v1/ocr/pipeline/{id}",
			Auth:        AuthRequired,
		},
		{
			Name:        "billing.checkout_session",
			Method:      http.MethodPost,
			Path:        "/billing/stripe/checkout-session",
			BackendPath: "/billing/stripe/checkout-session",
			Auth:        AuthRequired,
			CookieAuth:  true,
		},
		{
			Name:        "credits.balance",
			Method:      http.MethodGet,
			Path:        "/api/credits/balance",
			BackendPath: "/api/v1/credits/balance",
			Auth:        AuthRequired,
			Fixture:     jsonFixture(`{"balance":0}`),
		},
	}
}

func jsonFixture(body string) *Fixture {
	return &Fixture{Status: http.StatusOK, ContentType: "application/json", Body: []byte(body)}
}

// FromConfig converts configured routes. Auth defaults to required.
func FromConfig(cfgs []config.RouteConfig) []Route {
	routes := make([]Route, 0, len(cfgs))
	for _, c := range cfgs {
		r := Route{
			Name:        c.Name,
			Method:      strings.ToUpper(c.Method),
			Path:        c.Path,
			BackendPath: c.BackendPath,
			Auth:        AuthRequired,
			CookieAuth:  c.CookieAuth,
			RequireJSON: c.RequireJSON,
			Required:    c.Required,
		}
		if c.Auth == string(AuthPublic) {
			r.Auth = AuthPublic
		}
		if r.Name == "" {
			r.Name = r.Key()
		}
		if c.Fixture != nil {
			f := &Fixture{Status: c.Fixture.Status, ContentType: c.Fixture.ContentType, Body: []byte(c.Fixture.Body)}
			if f.Status == 0 {
				f.Status = http.StatusOK
			}
			if f.ContentType == "" {
				f.ContentType = "application/json"
			}
			r.Fixture = f
		}
		routes = append(routes, r)
	}
	return routes
}

// Merge returns base with overrides applied. An override with the same key
// replaces the base route in place; others are appended in order.
func Merge(base, overrides []Route) []Route {
	merged := make([]Route, len(base), len(base)+len(overrides))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[r.Key()] = i
	}

	for _, o := range overrides {
		if i, ok := index[o.Key()]; ok {
			merged[i] = o
			continue
		}
		index[o.Key()] = len(merged)
		merged = append(merged, o)
	}
	return merged
}

// Build returns the default table merged with cfg's routes.
func Build(cfg *config.Config) []Route {
	if cfg == nil {
		return Defaults()
	}
	return Merge(Defaults(), FromConfig(cfg.Routes))
}
