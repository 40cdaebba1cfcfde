package backend

import "testing"

// clearBackendEnv blanks every backend variable in the process environment so
// the resolver only sees what a test supplies.
func clearBackendEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BACKEND_BASE_URL",
		"NEXT_PUBLIC_BACKEND_BASE_URL",
		"BACKEND_URL",
		"APP_ENV",
		"BACKEND_URL_LOCAL",
		"BACKEND_URL_PRODUCTION",
	} {
		t.Setenv(key, "")
	}
}

func TestResolver_Resolve(t *testing.T) {
	clearBackendEnv(t)

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "default when nothing is set",
			env:  map[string]string{},
			want: DefaultOrigin,
		},
		{
			name: "explicit base url wins over everything",
			env: map[string]string{
				"BACKEND_BASE_URL":             "https://explicit.example.com",
				"NEXT_PUBLIC_BACKEND_BASE_URL": "https://public.example.com",
				"BACKEND_URL":                  "https://generic.example.com",
				"BACKEND_URL_LOCAL":            "http://localhost:9999",
			},
			want: "https://explicit.example.com",
		},
		{
			name: "public base url before generic",
			env: map[string]string{
				"NEXT_PUBLIC_BACKEND_BASE_URL": "https://public.example.com",
				"BACKEND_URL":                  "https://generic.example.com",
			},
			want: "https://public.example.com",
		},
		{
			name: "generic url before environment specific",
			env: map[string]string{
				"BACKEND_URL":       "https://generic.example.com",
				"BACKEND_URL_LOCAL": "http://localhost:9999",
			},
			want: "https://generic.example.com",
		},
		{
			name: "local url outside production",
			env: map[string]string{
				"BACKEND_URL_LOCAL":      "http://localhost:9999",
				"BACKEND_URL_PRODUCTION": "https://api.example.com",
			},
			want: "http://localhost:9999",
		},
		{
			name: "production url in production",
			env: map[string]string{
				"APP_ENV":                "Production",
				"BACKEND_URL_LOCAL":      "http://localhost:9999",
				"BACKEND_URL_PRODUCTION": "https://api.example.com",
			},
			want: "https://api.example.com",
		},
		{
			name: "blank values are skipped",
			env: map[string]string{
				"BACKEND_BASE_URL": "   ",
				"BACKEND_URL":      "https://generic.example.com",
			},
			want: "https://generic.example.com",
		},
		{
			name: "trailing slashes are stripped",
			env:  map[string]string{"BACKEND_BASE_URL": "https://api.example.com///"},
			want: "https://api.example.com",
		},
		{
			name: "configured version prefix is removed from origin",
			env:  map[string]string{"BACKEND_BASE_URL": "https://api.example.com/api/v1/"},
			want: "https://api.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{Environment: tt.env}
			got := r.Resolve()
			if got.Origin != tt.want {
				t.Errorf("Resolve().Origin = %q, want %q", got.Origin, tt.want)
			}
			if got.Prefix != "" {
				t.Errorf("Resolve().Prefix = %q, want empty", got.Prefix)
			}
		})
	}
}

func TestResolver_ResolveVersioned(t *testing.T) {
	clearBackendEnv(t)

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"default", map[string]string{}, "http://localhost:4100/api/v1"},
		{"plain origin", map[string]string{"BACKEND_URL": "https://api.example.com"}, "https://api.example.com/api/v1"},
		{"origin already versioned", map[string]string{"BACKEND_URL": "https://api.example.com/api/v1"}, "https://api.example.com/api/v1"},
		{"origin versioned twice", map[string]string{"BACKEND_URL": "https://api.example.com/api/v1/api/v1/"}, "https://api.example.com/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{Environment: tt.env}
			if got := r.ResolveVersioned().Base(); got != tt.want {
				t.Errorf("ResolveVersioned().Base() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_ProcessEnvironment(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("BACKEND_URL", "https://from-process.example.com/")

	if got := NewResolver().Resolve().Origin; got != "https://from-process.example.com" {
		t.Errorf("Resolve().Origin = %q, want process value", got)
	}
}

func TestEndpoint_URL(t *testing.T) {
	versioned := Endpoint{Origin: "https://api.example.com", Prefix: VersionPrefix}
	plain := Endpoint{Origin: "https://api.example.com"}

	tests := []struct {
		name     string
		endpoint Endpoint
		path     string
		want     string
	}{
		{"versioned adds prefix", versioned, "/credits/balance", "https://api.example.com/api/v1/credits/balance"},
		{"versioned does not double prefix", versioned, "/api/v1/credits/balance", "https://api.example.com/api/v1/credits/balance"},
		{"prefix lookalike is not a prefix", versioned, "/api/v10/x", "https://api.example.com/api/v1/api/v10/x"},
		{"plain joins path", plain, "/auth/register", "https://api.example.com/auth/register"},
		{"missing leading slash", plain, "auth/register", "https://api.example.com/auth/register"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.endpoint.URL(tt.path); got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
