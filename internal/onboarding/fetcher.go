package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
	"github.com/decoderlabs/decoder-gateway/internal/proxy"
)

// StatusPath is the backend's onboarding status endpoint, relative to the
// versioned API.
const StatusPath = "/onboarding/status"

// HTTPFetcher reads the status from the backend on behalf of one credential.
type HTTPFetcher struct {
	Gateway    *proxy.Gateway
	Backend    *backend.Resolver
	Credential *credential.Credential
}

// FetchStatus implements Fetcher. Only a 200 JSON response is accepted.
func (f *HTTPFetcher) FetchStatus(ctx context.Context) (*Status, error) {
	target := f.Backend.ResolveVersioned().URL(StatusPath)

	in := &proxy.Request{
		Method: http.MethodGet,
		Header: http.Header{"Accept": []string{"application/json"}},
	}
	resp, err := f.Gateway.Forward(ctx, in, target, f.Credential)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrUnexpectedUpstreamStatus(resp.StatusCode)
	}
	if !resp.IsJSON() {
		return nil, domain.ErrInvalidUpstreamResponse(fmt.Errorf("content type %q", resp.ContentType))
	}

	return decodeStatus(resp.Body, "status")
}

// FixtureFetcher decodes a canned status body instead of calling the backend.
// An empty body fails every fetch with MOCK_UNAVAILABLE.
type FixtureFetcher struct {
	Body []byte
}

func (f FixtureFetcher) FetchStatus(ctx context.Context) (*Status, error) {
	if len(f.Body) == 0 {
		return nil, domain.ErrMockUnavailable()
	}
	return decodeStatus(f.Body, "fixture")
}

// decodeStatus rejects bodies that are not a JSON object, including null.
func decodeStatus(body []byte, what string) (*Status, error) {
	var status *Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, domain.ErrInvalidUpstreamResponse(fmt.Errorf("failed to decode %s: %w", what, err))
	}
	if status == nil {
		return nil, domain.ErrInvalidUpstreamResponse(fmt.Errorf("%s is null", what))
	}
	return status, nil
}
