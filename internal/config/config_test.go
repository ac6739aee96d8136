package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("IDP_URL", "https://project.idp.example")
	os.Setenv("IDP_ANON_KEY", "anon-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != "3000" {
		t.Errorf("AppPort = %q, want %q", cfg.AppPort, "3000")
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %q, want %q", cfg.Env, "production")
	}
	if cfg.IsLocal() {
		t.Error("an unset APP_ENV must not be treated as local")
	}
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
	if got := cfg.SessionLifetime(); got != 24*time.Hour {
		t.Errorf("SessionLifetime = %v, want 24h", got)
	}
	if got := cfg.APIRequestTimeout(); got != 30*time.Second {
		t.Errorf("APIRequestTimeout = %v, want 30s", got)
	}
	if got := cfg.OAuthProviderList(); len(got) != 1 || got[0] != "google" {
		t.Errorf("OAuthProviderList = %v, want [google]", got)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setRequired(t)
	os.Setenv("APP_PORT", "8080")
	os.Setenv("APP_ENV", "production")
	os.Setenv("SESSION_TTL", "2h")
	os.Setenv("REDIRECT_ALLOWLIST", " app.xfoli.ai, ,www.xfoli.ai ")
	os.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != "8080" {
		t.Errorf("AppPort = %q, want %q", cfg.AppPort, "8080")
	}
	if cfg.IsLocal() {
		t.Error("production must not be local")
	}
	if got := cfg.SessionLifetime(); got != 2*time.Hour {
		t.Errorf("SessionLifetime = %v, want 2h", got)
	}
	hosts := cfg.RedirectHosts()
	if len(hosts) != 2 || hosts[0] != "app.xfoli.ai" || hosts[1] != "www.xfoli.ai" {
		t.Errorf("RedirectHosts = %v", hosts)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{" Local ", true},
		{"test", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}
	for _, tt := range tests {
		cfg := &Config{Env: tt.env}
		if got := cfg.IsLocal(); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestLoad_MissingIdentityProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no url", map[string]string{"IDP_ANON_KEY": "k"}},
		{"no key", map[string]string{"IDP_URL": "https://project.idp.example"}},
		{"relative url", map[string]string{"IDP_URL": "project.idp.example", "IDP_ANON_KEY": "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load should fail")
			}
		})
	}
}

func TestLoad_OIDCRequiresClient(t *testing.T) {
	setRequired(t)
	os.Setenv("OIDC_ISSUER", "https://accounts.google.com")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without OIDC_CLIENT_ID")
	}

	os.Setenv("OIDC_CLIENT_ID", "client")
	os.Setenv("OIDC_REDIRECT_URL", "http://localhost:3000/auth/callback/oidc")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDurations_InvalidFallBack(t *testing.T) {
	cfg := &Config{SessionTTL: "soon", APITimeout: "-1s"}
	if got := cfg.SessionLifetime(); got != 24*time.Hour {
		t.Errorf("SessionLifetime = %v, want 24h", got)
	}
	if got := cfg.APIRequestTimeout(); got != 30*time.Second {
		t.Errorf("APIRequestTimeout = %v, want 30s", got)
	}
}
