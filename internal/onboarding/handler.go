package onboarding

import (
	"net/http"

	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
	"github.com/decoderlabs/decoder-gateway/internal/server"
)

// NextResponse is the body of GET /api/onboarding/next.
type NextResponse struct {
	Route  Route   `json:"route"`
	Stale  bool    `json:"stale"`
	Status *Status `json:"status"`
}

// NextHandler refreshes the caller's status and answers with the route the
// caller must navigate to. When the refresh fails the last known status is
// used and the answer is marked stale.
type NextHandler struct {
	Registry *Registry
}

func (h *NextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred := credential.FromContext(r.Context())
	if cred == nil {
		codec.WriteError(w, domain.ErrMissingCredential())
		return
	}

	store := h.Registry.For(cred)
	err := store.Refresh(r.Context())
	snap := store.Snapshot()

	if err != nil {
		server.AddError(r.Context(), err)
		if snap.Status == nil {
			codec.WriteError(w, domain.ErrBackendUnreachable(err))
			return
		}
	}

	route := Decide(snap.Status)
	server.AddLogField(r.Context(), "onboarding_route", string(route))

	codec.WriteJSON(w, http.StatusOK, NextResponse{
		Route:  route,
		Stale:  err != nil,
		Status: snap.Status,
	})
}
