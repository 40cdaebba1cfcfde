// Package proxy forwards inbound requests to the backend and relays its
// response.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
	"github.com/decoderlabs/decoder-gateway/internal/server"
)

// DefaultUpstreamTimeout bounds a single forwarded call.
const DefaultUpstreamTimeout = 15 * time.Second

// maxResponseBytes caps how much of an upstream body is buffered. Larger
// bodies are rejected, never truncated.
const maxResponseBytes = 10 << 20

// Request is the subset of an inbound request that is forwarded.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// RequestFrom builds a Request from an inbound request whose body was
// already read into body.
func RequestFrom(r *http.Request, body []byte) *Request {
	return &Request{
		Method: r.Method,
		Header: r.Header,
		Body:   body,
	}
}

// Response is a relayed upstream response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the response carries JSON.
func (r *Response) IsJSON() bool {
	return isJSONContentType(r.ContentType)
}

// Gateway forwards requests to the backend. Calls are at-most-once; there
// are no retries.
type Gateway struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures the gateway.
type Option func(*Gateway)

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithUpstreamTimeout sets the per-call deadline. Zero or negative disables
// the gateway's own deadline and leaves only the caller's.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// New creates a gateway. The default client is traced with otelhttp.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:    DefaultUpstreamTimeout,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

type forwardConfig struct {
	cookieName string
	statusOnly bool
}

// ForwardOption adjusts a single forward call.
type ForwardOption func(*forwardConfig)

// WithCookieAuth also sends the credential as a cookie under name, for
// backend endpoints that read the token from cookies.
func WithCookieAuth(name string) ForwardOption {
	return func(c *forwardConfig) {
		c.cookieName = name
	}
}

// WithStatusOnly discards the upstream body without validating it, for
// callers that only act on the status code.
func WithStatusOnly() ForwardOption {
	return func(c *forwardConfig) {
		c.statusOnly = true
	}
}

// Forward sends in to target and returns the translated response. Errors are
// always *domain.Error.
func (g *Gateway) Forward(ctx context.Context, in *Request, target string, cred *credential.Credential, opts ...ForwardOption) (*Response, error) {
	var cfg forwardConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	method := in.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead && len(in.Body) > 0 {
		body = bytes.NewReader(in.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, domain.ErrBackendUnreachable(fmt.Errorf("failed to create request: %w", err))
	}

	applyHeaders(httpReq, in.Header, cred, cfg)
	if requestID := server.GetRequestID(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrBackendUnreachable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if cfg.statusOnly {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &Response{StatusCode: resp.StatusCode, ContentType: contentType}, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, domain.ErrBackendUnreachable(fmt.Errorf("failed to read response: %w", err))
	}
	if len(raw) > maxResponseBytes {
		return nil, domain.ErrInvalidUpstreamResponse(fmt.Errorf("upstream status %d: body exceeds %d bytes", resp.StatusCode, maxResponseBytes))
	}

	return translate(method, resp.StatusCode, contentType, raw)
}

func applyHeaders(httpReq *http.Request, inbound http.Header, cred *credential.Credential, cfg forwardConfig) {
	if auth := inbound.Get("Authorization"); auth != "" {
		httpReq.Header.Set("Authorization", auth)
	} else if cred != nil {
		httpReq.Header.Set("Authorization", cred.AuthorizationHeader())
	}

	if ct := inbound.Get("Content-Type"); ct != "" {
		httpReq.Header.Set("Content-Type", ct)
	}
	if accept := inbound.Get("Accept"); accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	if cfg.cookieName != "" && cred != nil {
		httpReq.AddCookie(&http.Cookie{Name: cfg.cookieName, Value: cred.Token})
	}
}

// translate applies the response policy: JSON bodies must parse and are
// re-emitted compacted, anything else passes through byte for byte. HEAD,
// 204 and 304 responses may carry an empty JSON body.
func translate(method string, status int, contentType string, raw []byte) (*Response, error) {
	if !isJSONContentType(contentType) {
		return &Response{StatusCode: status, ContentType: contentType, Body: raw}, nil
	}

	if len(bytes.TrimSpace(raw)) == 0 && bodyless(method, status) {
		return &Response{StatusCode: status, ContentType: contentType}, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, domain.ErrInvalidUpstreamResponse(fmt.Errorf("upstream status %d: %w", status, err))
	}

	return &Response{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        buf.Bytes(),
	}, nil
}

func bodyless(method string, status int) bool {
	return method == http.MethodHead || status == http.StatusNoContent || status == http.StatusNotModified
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}

// IsTimeout reports whether err came from a deadline on the forwarded call.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// WriteResponse relays resp to w.
func WriteResponse(w http.ResponseWriter, resp *Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}
