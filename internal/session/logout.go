package session

import (
	"net/http"

	"github.com/decoderlabs/decoder-gateway/internal/codec"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/journey"
)

// Logout serves POST /api/auth/logout. It expires every credential cookie
// and the journey marker. No backend call is made.
type Logout struct {
	SecureCookies bool
	// OnLogout, when set, is called with the credential being cleared.
	OnLogout func(*credential.Credential)
}

func (l *Logout) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred := credential.FromContext(r.Context())
	if cred == nil {
		cred = credential.Resolve(r)
	}

	credential.ClearAll(w, l.SecureCookies)
	journey.Clear(w, l.SecureCookies)

	if cred != nil && l.OnLogout != nil {
		l.OnLogout(cred)
	}

	codec.WriteJSON(w, http.StatusOK, codec.OK{OK: true})
}
