// Package credential centralizes bearer credential resolution from cookies.
package credential

import (
	"context"
	"net/http"
	"strings"
)

// Recognized credential cookie names.
const (
	AccessTokenCookie     = "accessToken"
	TokenCookie           = "token"
	HintAccessTokenCookie = "hint_access_token"
	LegacyAuthCookie      = "decoder_auth"
)

// DefaultNames is the resolution order shared by every authenticated route.
var DefaultNames = []string{
	AccessTokenCookie,
	TokenCookie,
	HintAccessTokenCookie,
	LegacyAuthCookie,
}

const bearerScheme = "bearer"

// Credential is a normalized bearer token and the cookie it was read from.
type Credential struct {
	Token  string
	Source string
}

// AuthorizationHeader returns the value for an Authorization header.
func (c *Credential) AuthorizationHeader() string {
	return "Bearer " + c.Token
}

// Resolver reads a credential from an ordered list of cookie names.
type Resolver struct {
	Names []string
}

// NewResolver creates a resolver with the given order, or DefaultNames when
// names is empty.
func NewResolver(names ...string) *Resolver {
	if len(names) == 0 {
		names = DefaultNames
	}
	return &Resolver{Names: names}
}

// Resolve returns the first present, non-empty credential, or nil when the
// request is anonymous.
func (res *Resolver) Resolve(r *http.Request) *Credential {
	if r == nil {
		return nil
	}
	names := res.Names
	if len(names) == 0 {
		names = DefaultNames
	}
	for _, name := range names {
		cookie, err := r.Cookie(name)
		if err != nil || cookie == nil {
			continue
		}
		token := Normalize(cookie.Value)
		if token == "" {
			continue
		}
		return &Credential{Token: token, Source: name}
	}
	return nil
}

// Resolve resolves a credential using DefaultNames.
func Resolve(r *http.Request) *Credential {
	return NewResolver().Resolve(r)
}

// Normalize trims a raw token and strips a case-insensitive "Bearer " prefix.
func Normalize(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) < len(bearerScheme) || !strings.EqualFold(token[:len(bearerScheme)], bearerScheme) {
		return token
	}
	rest := token[len(bearerScheme):]
	if rest == "" || rest[0] == ' ' {
		return strings.TrimSpace(rest)
	}
	return token
}

type contextKey struct{}

// WithCredential stores a credential in the context.
func WithCredential(ctx context.Context, c *Credential) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the credential stored by WithCredential, or nil.
func FromContext(ctx context.Context) *Credential {
	if c, ok := ctx.Value(contextKey{}).(*Credential); ok {
		return c
	}
	return nil
}
