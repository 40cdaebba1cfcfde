package credential

import "net/http"

// alternateNames are cookie names older front ends or third-party auth
// widgets have been seen setting. Logout clears them too.
var alternateNames = []string{
	"access_token",
	"auth_token",
	"jwt",
	"session",
	"refreshToken",
	"refresh_token",
}

// LogoutNames returns every cookie name cleared on logout, recognized names first.
func LogoutNames() []string {
	names := make([]string, 0, len(DefaultNames)+len(alternateNames))
	names = append(names, DefaultNames...)
	return append(names, alternateNames...)
}

// ClearAll expires every recognized credential cookie and the alternates.
func ClearAll(w http.ResponseWriter, secure bool) {
	if w == nil {
		return
	}
	for _, name := range LogoutNames() {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
