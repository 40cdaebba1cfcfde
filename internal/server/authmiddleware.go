package server

import (
	"net/http"

	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/domain"
)

// CredentialMiddleware resolves the bearer credential from cookies and stores
// it in the request context. Anonymous requests pass through with no
// credential; routes that need one use RequireCredential.
func CredentialMiddleware(resolver *credential.Resolver) func(http.Handler) http.Handler {
	if resolver == nil {
		resolver = credential.NewResolver()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := resolver.Resolve(r)
			if cred == nil {
				next.ServeHTTP(w, r)
				return
			}
			AddLogField(r.Context(), "credential_source", cred.Source)
			next.ServeHTTP(w, r.WithContext(credential.WithCredential(r.Context(), cred)))
		})
	}
}

// RequireCredential rejects requests without a resolved credential with 401
// before they reach the backend.
func RequireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if credential.FromContext(r.Context()) == nil {
			codec.WriteError(w, domain.ErrMissingCredential())
			return
		}
		next.ServeHTTP(w, r)
	})
}
