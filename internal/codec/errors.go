// Package codec renders gateway results and errors as JSON responses.
package codec

import (
	"encoding/json"
	"net/http"

	"github.com/decoderlabs/decoder-gateway/internal/domain"
)

// ErrorResponse is a rendered error ready to be written.
type ErrorResponse struct {
	StatusCode int
	Body       []byte
}

// errorBody is the client-visible error shape. The top-level message mirrors
// error.message so older clients reading {ok, message} keep working.
type errorBody struct {
	OK      bool          `json:"ok"`
	Message string        `json:"message"`
	Error   *domain.Error `json:"error"`
}

// FormatError converts any error to a client-safe response. Causes are never
// rendered.
func FormatError(err error) *ErrorResponse {
	gwErr := domain.AsError(err)
	if gwErr == nil {
		gwErr = domain.ErrBackendUnreachable(nil)
	}

	body, _ := json.Marshal(errorBody{
		OK:      false,
		Message: gwErr.Message,
		Error:   gwErr,
	})

	return &ErrorResponse{
		StatusCode: gwErr.HTTPStatusCode(),
		Body:       body,
	}
}

// WriteError writes err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	resp := FormatError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK is the body of a bare success response.
type OK struct {
	OK bool `json:"ok"`
}
