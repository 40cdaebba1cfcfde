package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
	"github.com/decoderlabs/decoder-gateway/internal/proxy"
	"github.com/decoderlabs/decoder-gateway/internal/server"
	"github.com/decoderlabs/decoder-gateway/internal/telemetry"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// ModeHeader marks responses served from fixtures.
const ModeHeader = "X-Gateway-Mode"

// Proxy turns routes into handlers that share one gateway.
type Proxy struct {
	Gateway *proxy.Gateway
	Backend *backend.Resolver
	// Mock serves route fixtures instead of calling the backend.
	Mock bool
	// CookieName is the cookie cookie-auth routes send the credential in.
	CookieName string
	Metrics    *telemetry.Metrics
}

// Handler returns the handler for route.
func (p *Proxy) Handler(route Route) http.Handler {
	var h http.Handler = &routeHandler{
		proxy:  p,
		route:  route,
		params: placeholders(route.Path),
	}
	if route.Auth != AuthPublic {
		h = server.RequireCredential(h)
	}
	return p.instrument(route, h)
}

func (p *Proxy) instrument(route Route, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.AddLogField(r.Context(), "route", route.Name)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		p.Metrics.ObserveProxy(route.Name, route.Method, status)
	})
}

func (p *Proxy) cookieName() string {
	if p.CookieName != "" {
		return p.CookieName
	}
	return credential.AccessTokenCookie
}

type routeHandler struct {
	proxy  *Proxy
	route  Route
	params []string
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		codec.WriteError(w, err)
		return
	}
	if err := validateBody(h.route, body); err != nil {
		codec.WriteError(w, err)
		return
	}

	target, err := h.target(r)
	if err != nil {
		codec.WriteError(w, err)
		return
	}

	if h.proxy.Mock {
		serveFixture(w, h.route)
		return
	}

	var opts []proxy.ForwardOption
	if h.route.CookieAuth {
		opts = append(opts, proxy.WithCookieAuth(h.proxy.cookieName()))
	}

	start := time.Now()
	resp, err := h.proxy.Gateway.Forward(ctx, proxy.RequestFrom(r, body), target, credential.FromContext(ctx), opts...)
	h.proxy.Metrics.ObserveUpstream(h.route.Name, time.Since(start))
	if err != nil {
		if proxy.IsTimeout(err) {
			server.AddLogField(ctx, "upstream_timeout", "true")
		}
		server.AddError(ctx, err)
		codec.WriteError(w, err)
		return
	}

	server.AddLogField(ctx, "upstream_status", strconv.Itoa(resp.StatusCode))
	proxy.WriteResponse(w, resp)
}

// target builds the backend URL for r. Query parameters used to fill the
// backend path are not forwarded.
func (h *routeHandler) target(r *http.Request) (string, error) {
	query := r.URL.Query()

	isParam := make(map[string]bool, len(h.params))
	for _, name := range h.params {
		isParam[name] = true
	}

	var missing string
	path := placeholderPattern.ReplaceAllStringFunc(h.route.BackendPath, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		var value string
		if isParam[name] {
			value = chi.URLParam(r, name)
		} else {
			value = query.Get(name)
			query.Del(name)
		}

		value = strings.TrimSpace(value)
		if value == "" && missing == "" {
			missing = name
		}
		return url.PathEscape(value)
	})
	if missing != "" {
		return "", domain.ErrValidation(missing + " is required")
	}

	target := h.proxy.Backend.Resolve().URL(path)
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target, nil
}

// readBody reads the inbound body once so it can be validated and then
// forwarded unchanged.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrValidation("Request body too large").WithStatusCode(http.StatusRequestEntityTooLarge)
		}
		return nil, domain.ErrValidation("Invalid request body")
	}
	return body, nil
}

func validateBody(route Route, body []byte) error {
	if !route.RequireJSON && len(route.Required) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return domain.ErrValidation("Request body must be a JSON object")
	}

	for _, name := range route.Required {
		raw, ok := fields[name]
		if !ok || isBlank(raw) {
			return domain.ErrValidation(name + " is required")
		}
	}
	return nil
}

// isBlank reports whether a JSON value is null or a whitespace-only string.
func isBlank(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if bytes.Equal(v, []byte("null")) {
		return true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func serveFixture(w http.ResponseWriter, route Route) {
	w.Header().Set(ModeHeader, "mock")
	if route.Fixture == nil {
		codec.WriteError(w, domain.ErrMockUnavailable())
		return
	}
	proxy.WriteResponse(w, &proxy.Response{
		StatusCode:  route.Fixture.Status,
		ContentType: route.Fixture.ContentType,
		Body:        route.Fixture.Body,
	})
}
