package routes

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/decoderlabs/decoder-gateway/internal/codec"
)

// Router serves the current route table. Load swaps the table atomically;
// in-flight requests finish on the table they started with.
type Router struct {
	proxy *Proxy
	state atomic.Pointer[routerState]
}

type routerState struct {
	mux   *chi.Mux
	table []Route
}

// NewRouter creates a router serving table.
func NewRouter(p *Proxy, table []Route) *Router {
	rt := &Router{proxy: p}
	rt.Load(table)
	return rt
}

// Load replaces the served table.
func (rt *Router) Load(table []Route) {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		codec.WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "Not found"})
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		codec.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "Method not allowed"})
	})
	Mount(mux, table, rt.proxy)

	rt.state.Store(&routerState{
		mux:   mux,
		table: append([]Route(nil), table...),
	})
}

// Routes returns the served table.
func (rt *Router) Routes() []Route {
	return append([]Route(nil), rt.state.Load().table...)
}

// ServeHTTP routes r with a fresh chi context so it can sit behind another
// chi router's NotFound handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, nil)
	rt.state.Load().mux.ServeHTTP(w, r.WithContext(ctx))
}

// Mount registers every route of table on r.
func Mount(r chi.Router, table []Route, p *Proxy) {
	for _, route := range table {
		r.Method(route.Method, route.Path, p.Handler(route))
	}
}
