// Package session answers whether the caller's credential is still accepted
// by the backend, and ends sessions.
package session

import (
	"net/http"
	"strconv"

	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
	"github.com/decoderlabs/decoder-gateway/internal/proxy"
	"github.com/decoderlabs/decoder-gateway/internal/server"
)

// ProbePath is the cheap authenticated read used to test a credential,
// relative to the versioned API.
const ProbePath = "/credits/balance"

// Validator serves GET /api/auth/session. It fails closed: only an upstream
// 200 counts as a valid session.
type Validator struct {
	Gateway *proxy.Gateway
	Backend *backend.Resolver
	// Mock accepts any present credential without probing the backend.
	Mock bool
}

func (v *Validator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred := credential.FromContext(r.Context())
	if cred == nil {
		cred = credential.Resolve(r)
	}
	if cred == nil {
		codec.WriteJSON(w, http.StatusUnauthorized, codec.OK{OK: false})
		return
	}
	if v.Mock {
		w.Header().Set("X-Gateway-Mode", "mock")
		codec.WriteJSON(w, http.StatusOK, codec.OK{OK: true})
		return
	}

	in := &proxy.Request{Method: http.MethodGet, Header: r.Header}
	resp, err := v.Gateway.Forward(r.Context(), in, v.Backend.ResolveVersioned().URL(ProbePath), cred, proxy.WithStatusOnly())
	if err != nil {
		server.AddError(r.Context(), err)
		codec.WriteError(w, err)
		return
	}

	server.AddLogField(r.Context(), "upstream_status", strconv.Itoa(resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
		codec.WriteJSON(w, http.StatusOK, codec.OK{OK: true})
	case http.StatusUnauthorized, http.StatusForbidden:
		codec.WriteJSON(w, http.StatusUnauthorized, codec.OK{OK: false})
	default:
		err := domain.ErrUnexpectedUpstreamStatus(resp.StatusCode)
		server.AddError(r.Context(), err)
		codec.WriteError(w, err)
	}
}
