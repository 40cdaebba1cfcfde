package routes

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/pkg/config"
	"github.com/decoderlabs/decoder-gateway/internal/proxy"
	"github.com/decoderlabs/decoder-gateway/internal/server"
	"github.com/decoderlabs/decoder-gateway/internal/telemetry"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Cookie string
	Body   string
}

type recordingBackend struct {
	mu   sync.Mutex
	seen []seenRequest
	srv  *httptest.Server
}

func newRecordingBackend(t *testing.T) *recordingBackend {
	t.Helper()
	b := &recordingBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var cookie string
		if c, err := r.Cookie(credential.AccessTokenCookie); err == nil {
			cookie = c.Value
		}

		b.mu.Lock()
		b.seen = append(b.seen, seenRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Cookie: cookie,
			Body:   string(body),
		})
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{ "ok" : true }`)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *recordingBackend) requests() []seenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]seenRequest(nil), b.seen...)
}

func (b *recordingBackend) proxy(metrics *telemetry.Metrics) *Proxy {
	return &Proxy{
		Gateway: proxy.New(proxy.WithHTTPClient(b.srv.Client())),
		Backend: &backend.Resolver{Environment: map[string]string{"BACKEND_BASE_URL": b.srv.URL}},
		Metrics: metrics,
	}
}

// mount places rt behind an outer router the way the runtime does.
func mount(rt *Router) http.Handler {
	outer := chi.NewRouter()
	outer.Use(server.CredentialMiddleware(nil))
	outer.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	outer.NotFound(rt.ServeHTTP)
	return outer
}

func do(t *testing.T, h http.Handler, method, target, body string, withCookie bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withCookie {
		req.AddCookie(&http.Cookie{Name: credential.AccessTokenCookie, Value: "tok"})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if body.OK {
		t.Errorf("ok = true in error body %s", rec.Body.String())
	}
	return body.Message
}

func TestDefaults(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range Defaults() {
		if seen[r.Key()] {
			t.Errorf("duplicate route %s", r.Key())
		}
		seen[r.Key()] = true

		if r.Name == "" || !strings.HasPrefix(r.Path, "/") || !strings.HasPrefix(r.BackendPath, "/") {
			t.Errorf("malformed route %+v", r)
		}
		if r.Auth != AuthPublic && r.Auth != AuthRequired {
			t.Errorf("%s: auth = %q", r.Name, r.Auth)
		}
	}
}

func TestMerge(t *testing.T) {
	base := []Route{
		{Name: "a", Method: "GET", Path: "/a"},
		{Name: "b", Method: "GET", Path: "/b"},
	}
	overrides := []Route{
		{Name: "b2", Method: "GET", Path: "/b"},
		{Name: "c", Method: "POST", Path: "/c"},
	}

	got := Merge(base, overrides)

	var names []string
	for _, r := range got {
		names = append(names, r.Name)
	}
	if strings.Join(names, ",") != "a,b2,c" {
		t.Errorf("merged = %v, want [a b2 c]", names)
	}
	if base[1].Name != "b" {
		t.Error("Merge modified base")
	}
}

func TestFromConfig(t *testing.T) {
	got := FromConfig([]config.RouteConfig{
		{Method: "get", Path: "/x", BackendPath: "/api/v1/x"},
		{
			Name:        "y",
			Method:      "POST",
			Path:        "/y",
			BackendPath: "/y",
			Auth:        "public",
			Fixture:     &config.FixtureConfig{Body: `{"y":1}`},
		},
	})

	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Method != "GET" || got[0].Name != "GET /x" || got[0].Auth != AuthRequired {
		t.Errorf("route 0 = %+v", got[0])
	}
	f := got[1].Fixture
	if got[1].Auth != AuthPublic || f == nil || f.Status != http.StatusOK || f.ContentType != "application/json" {
		t.Errorf("route 1 = %+v fixture %+v", got[1], f)
	}
}

func TestBuild_OverridesDefault(t *testing.T) {
	table := Build(&config.Config{Routes: []config.RouteConfig{
		{Method: "GET", Path: "/api/credits/balance", BackendPath: "/api/v2/credits"},
	}})

	if len(table) != len(Defaults()) {
		t.Errorf("len = %d, want %d", len(table), len(Defaults()))
	}
	for _, r := range table {
		if r.Key() == "GET /api/credits/balance" && r.BackendPath != "/api/v2/credits" {
			t.Errorf("override not applied: %+v", r)
		}
	}
}

func TestRouter_PathParam(t *testing.T) {
	b := newRecordingBackend(t)
	h := mount(NewRouter(b.proxy(nil), Defaults()))

	rec := do(t, h, http.MethodPost, "/api/checkout/ord-1/confirm", `{"plan":"pro"}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %s, want compacted JSON", rec.Body.String())
	}

	seen := b.requests()
	if len(seen) != 1 {
		t.Fatalf("backend calls = %d", len(seen))
	}
	want := seenRequest{
		Method: http.MethodPost,
		Path:   "/api/v1/checkout/ord-1/confirm",
		Auth:   "Bearer tok",
		Body:   `{"plan":"pro"}`,
	}
	if seen[0] != want {
		t.Errorf("backend saw %+v, want %+v", seen[0], want)
	}
}

func TestRouter_QueryPlaceholder(t *testing.T) {
	b := newRecordingBackend(t)
	h := mount(NewRouter(b.proxy(nil), Defaults()))

	rec := do(t, h, http.MethodGet, "/api/ocr/pipeline/status?id=job%2F1&verbose=1", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}

	seen := b.requests()[0]
	if seen.Path != "/api/v1/ocr/pipeline/job%2F1" {
		t.Errorf("path = %s", seen.Path)
	}
	if seen.Query != "verbose=1" {
		t.Errorf("query = %q, want id consumed", seen.Query)
	}

	rec = do(t, h, http.MethodGet, "/api/ocr/pipeline/status", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "id is required" {
		t.Errorf("message = %q", msg)
	}
	if n := len(b.requests()); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
}

func TestRouter_BodyValidation(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"register not json", "/api/auth/register", `not json`, http.StatusBadRequest, "Request body must be a JSON object"},
		{"register array", "/api/auth/register", `[1]`, http.StatusBadRequest, "Request body must be a JSON object"},
		{"register object", "/api/auth/register", `{"email":"a@b.c"}`, http.StatusOK, ""},
		{"exists missing email", "/api/auth/register/exists", `{}`, http.StatusBadRequest, "email is required"},
		{"exists blank email", "/api/auth/register/exists", `{"email":"  "}`, http.StatusBadRequest, "email is required"},
		{"exists null email", "/api/auth/register/exists", `{"email":null}`, http.StatusBadRequest, "email is required"},
		{"exists ok", "/api/auth/register/exists", `{"email":"a@b.c"}`, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newRecordingBackend(t)
			h := mount(NewRouter(b.proxy(nil), Defaults()))

			rec := do(t, h, http.MethodPost, tt.path, tt.body, false)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantMsg == "" {
				return
			}
			if msg := errorMessage(t, rec); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
			if n := len(b.requests()); n != 0 {
				t.Errorf("backend calls = %d, want 0", n)
			}
		})
	}
}

func TestRouter_RegisterIsUnversioned(t *testing.T) {
	b := newRecordingBackend(t)
	h := mount(NewRouter(b.proxy(nil), Defaults()))

	do(t, h, http.MethodPost, "/api/auth/register", `{}`, false)

	if seen := b.requests(); len(seen) != 1 || seen[0].Path != "/auth/register" || seen[0].Auth != "" {
		t.Errorf("backend saw %+v", seen)
	}
}

func TestRouter_RequiresCredential(t *testing.T) {
	b := newRecordingBackend(t)
	h := mount(NewRouter(b.proxy(nil), Defaults()))

	rec := do(t, h, http.MethodPost, "/api/checkout/start", `{}`, false)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if n := len(b.requests()); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestRouter_CookieAuth(t *testing.T) {
	b := newRecordingBackend(t)
	h := mount(NewRouter(b.proxy(nil), Defaults()))

	rec := do(t, h, http.MethodPost, "/billing/stripe/checkout-session", `{}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	seen := b.requests()[0]
	if seen.Cookie != "tok" || seen.Auth != "Bearer tok" {
		t.Errorf("backend saw cookie %q auth %q", seen.Cookie, seen.Auth)
	}

	do(t, h, http.MethodPost, "/api/checkout/start", `{}`, true)
	if seen := b.requests()[1]; seen.Cookie != "" {
		t.Errorf("non cookie-auth route sent cookie %q", seen.Cookie)
	}
}

func TestRouter_MockMode(t *testing.T) {
	b := newRecordingBackend(t)
	p := b.proxy(nil)
	p.Mock = true
	h := mount(NewRouter(p, Defaults()))

	rec := do(t, h, http.MethodGet, "/api/credits/balance", "", true)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"balance":0}` {
		t.Errorf("fixture = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(ModeHeader) != "mock" {
		t.Errorf("%s = %q", ModeHeader, rec.Header().Get(ModeHeader))
	}

	rec = do(t, h, http.MethodPost, "/api/checkout/start", `{}`, true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no fixture status = %d, want 503", rec.Code)
	}

	// Credentials and validation still apply in mock mode.
	if rec := do(t, h, http.MethodGet, "/api/credits/balance", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	if n := len(b.requests()); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestRouter_BackendUnreachable(t *testing.T) {
	b := newRecordingBackend(t)
	p := b.proxy(nil)
	b.srv.Close()
	h := mount(NewRouter(p, Defaults()))

	rec := do(t, h, http.MethodGet, "/api/credits/balance", "", true)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "127.0.0.1") {
		t.Errorf("error body leaks backend address: %s", rec.Body.String())
	}
}

func TestRouter_UpstreamTimeoutLogged(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	p := &Proxy{
		Gateway: proxy.New(proxy.WithHTTPClient(slow.Client()), proxy.WithUpstreamTimeout(20*time.Millisecond)),
		Backend: &backend.Resolver{Environment: map[string]string{"BACKEND_BASE_URL": slow.URL}},
	}

	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := server.LoggingMiddleware(logger)(mount(NewRouter(p, Defaults())))

	rec := do(t, h, http.MethodGet, "/api/credits/balance", "", true)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(logs.String(), "upstream_timeout=true") {
		t.Errorf("log = %s, want upstream_timeout=true", logs.String())
	}
}

func TestRouter_NotFound(t *testing.T) {
	b := newRecordingBackend(t)
	h := mount(NewRouter(b.proxy(nil), Defaults()))

	rec := do(t, h, http.MethodGet, "/api/unknown", "", true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Not found" {
		t.Errorf("message = %q", msg)
	}
}

func TestRouter_Load(t *testing.T) {
	b := newRecordingBackend(t)
	rt := NewRouter(b.proxy(nil), Defaults())
	h := mount(rt)

	rt.Load([]Route{{
		Name:        "reports",
		Method:      http.MethodGet,
		Path:        "/api/reports/{id}",
		BackendPath: "/api/v1/reports/{id}",
		Auth:        AuthPublic,
	}})

	if rec := do(t, h, http.MethodGet, "/api/credits/balance", "", true); rec.Code != http.StatusNotFound {
		t.Errorf("removed route status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/reports/r1", "", false); rec.Code != http.StatusOK {
		t.Errorf("added route status = %d, want 200", rec.Code)
	}
	if seen := b.requests(); len(seen) != 1 || seen[0].Path != "/api/v1/reports/r1" {
		t.Errorf("backend saw %+v", seen)
	}
	if got := rt.Routes(); len(got) != 1 || got[0].Name != "reports" {
		t.Errorf("Routes() = %+v", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	b := newRecordingBackend(t)
	metrics := telemetry.NewMetrics(nil)
	h := mount(NewRouter(b.proxy(metrics), Defaults()))

	do(t, h, http.MethodGet, "/api/credits/balance", "", true)
	do(t, h, http.MethodGet, "/api/credits/balance", "", false)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()

	for _, want := range []string{
		`decoder_gateway_proxy_requests_total{method="GET",route="credits.balance",status="200"} 1`,
		`decoder_gateway_proxy_requests_total{method="GET",route="credits.balance",status="401"} 1`,
		`decoder_gateway_upstream_duration_seconds_count{route="credits.balance"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
