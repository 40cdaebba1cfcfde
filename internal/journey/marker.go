// Package journey manages the short-lived cookie that biases the marketing
// and registration flow toward a paid or trial path.
package journey

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
)

// CookieName is the journey marker cookie.
const CookieName = "decoder_journey"

// TTL is how long a marker survives.
const TTL = 2 * time.Hour

// Marker is the path a visitor is biased toward.
type Marker string

const (
	MarkerPaid  Marker = "PAID"
	MarkerTrial Marker = "TRIAL"
)

// ParseMarker accepts PAID or TRIAL in any case.
func ParseMarker(raw string) (Marker, bool) {
	switch Marker(strings.ToUpper(strings.TrimSpace(raw))) {
	case MarkerPaid:
		return MarkerPaid, true
	case MarkerTrial:
		return MarkerTrial, true
	default:
		return "", false
	}
}

// Read returns the current marker when present and valid.
func Read(r *http.Request) (Marker, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie == nil {
		return "", false
	}
	return ParseMarker(cookie.Value)
}

// Set writes the marker cookie. It is readable by client scripts.
func Set(w http.ResponseWriter, m Marker, secure bool) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    string(m),
		Path:     "/",
		MaxAge:   int(TTL.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the marker cookie.
func Clear(w http.ResponseWriter, secure bool) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Handler serves GET, PUT and DELETE on the journey marker.
type Handler struct {
	SecureCookies bool
}

type markerBody struct {
	Marker *Marker `json:"marker"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var body markerBody
		if m, ok := Read(r); ok {
			body.Marker = &m
		}
		codec.WriteJSON(w, http.StatusOK, body)

	case http.MethodPut, http.MethodPost:
		var req struct {
			Marker string `json:"marker"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			codec.WriteError(w, domain.ErrValidation("Invalid JSON body"))
			return
		}
		m, ok := ParseMarker(req.Marker)
		if !ok {
			codec.WriteError(w, domain.ErrValidation("marker must be PAID or TRIAL"))
			return
		}
		Set(w, m, h.SecureCookies)
		codec.WriteJSON(w, http.StatusOK, markerBody{Marker: &m})

	case http.MethodDelete:
		Clear(w, h.SecureCookies)
		codec.WriteJSON(w, http.StatusOK, markerBody{})

	default:
		w.Header().Set("Allow", "GET, PUT, POST, DELETE")
		codec.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "message": "Method not allowed"})
	}
}
