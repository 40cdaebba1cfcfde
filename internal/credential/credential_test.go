package credential

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithCookies(cookies map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		cookies    map[string]string
		wantToken  string
		wantSource string
		wantNil    bool
	}{
		{
			name:    "no cookies",
			cookies: map[string]string{},
			wantNil: true,
		},
		{
			name:    "unrecognized cookie only",
			cookies: map[string]string{"theme": "dark"},
			wantNil: true,
		},
		{
			name:       "legacy cookie alone",
			cookies:    map[string]string{LegacyAuthCookie: "legacy-token"},
			wantToken:  "legacy-token",
			wantSource: LegacyAuthCookie,
		},
		{
			name: "highest priority wins when all are present",
			cookies: map[string]string{
				AccessTokenCookie:     "access",
				TokenCookie:           "generic",
				HintAccessTokenCookie: "hint",
				LegacyAuthCookie:      "legacy",
			},
			wantToken:  "access",
			wantSource: AccessTokenCookie,
		},
		{
			name: "token before hint and legacy",
			cookies: map[string]string{
				TokenCookie:      "generic",
				LegacyAuthCookie: "legacy",
			},
			wantToken:  "generic",
			wantSource: TokenCookie,
		},
		{
			name: "empty higher priority cookie is skipped",
			cookies: map[string]string{
				AccessTokenCookie:     "",
				HintAccessTokenCookie: "hint",
			},
			wantToken:  "hint",
			wantSource: HintAccessTokenCookie,
		},
		{
			name:       "bearer prefix is stripped",
			cookies:    map[string]string{AccessTokenCookie: "Bearer abc.def"},
			wantToken:  "abc.def",
			wantSource: AccessTokenCookie,
		},
		{
			name:       "bearer prefix in any case",
			cookies:    map[string]string{TokenCookie: "bEaReR xyz"},
			wantToken:  "xyz",
			wantSource: TokenCookie,
		},
		{
			name:    "bare bearer prefix is absent",
			cookies: map[string]string{AccessTokenCookie: "Bearer "},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(requestWithCookies(tt.cookies))
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Resolve() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Resolve() = nil, want credential")
			}
			if got.Token != tt.wantToken {
				t.Errorf("Token = %q, want %q", got.Token, tt.wantToken)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
		})
	}
}

func TestResolver_CustomOrder(t *testing.T) {
	req := requestWithCookies(map[string]string{
		AccessTokenCookie: "access",
		LegacyAuthCookie:  "legacy",
	})

	got := NewResolver(LegacyAuthCookie, AccessTokenCookie).Resolve(req)
	if got == nil || got.Token != "legacy" {
		t.Errorf("Resolve() = %+v, want legacy token", got)
	}
}

func TestResolve_NilRequest(t *testing.T) {
	if got := Resolve(nil); got != nil {
		t.Errorf("Resolve(nil) = %+v, want nil", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc", "abc"},
		{"  abc  ", "abc"},
		{"Bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"Bearerabc", "Bearerabc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCredential_AuthorizationHeader(t *testing.T) {
	c := &Credential{Token: "abc"}
	if got := c.AuthorizationHeader(); got != "Bearer abc" {
		t.Errorf("AuthorizationHeader() = %q", got)
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil credential in empty context")
	}

	c := &Credential{Token: "abc", Source: TokenCookie}
	ctx := WithCredential(context.Background(), c)
	if got := FromContext(ctx); got != c {
		t.Errorf("FromContext() = %+v, want %+v", got, c)
	}
}

func TestClearAll(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearAll(rec, true)

	cleared := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		cleared[c.Name] = c
	}

	for _, name := range LogoutNames() {
		c, ok := cleared[name]
		if !ok {
			t.Errorf("cookie %q was not cleared", name)
			continue
		}
		if c.Value != "" {
			t.Errorf("cookie %q value = %q, want empty", name, c.Value)
		}
		if c.MaxAge >= 0 {
			t.Errorf("cookie %q MaxAge = %d, want expired", name, c.MaxAge)
		}
		if !c.Secure {
			t.Errorf("cookie %q should be Secure", name)
		}
	}

	for _, name := range DefaultNames {
		if _, ok := cleared[name]; !ok {
			t.Errorf("recognized cookie %q missing from logout list", name)
		}
	}
}

func TestClearAll_NilWriter(t *testing.T) {
	ClearAll(nil, false)
}
