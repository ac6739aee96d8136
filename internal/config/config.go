// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"xfoli-web/internal/auth/resolver"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// AppPort is the HTTP listen port.
	AppPort string `mapstructure:"APP_PORT"`
	// Env is the application environment. Defaults to "production"; local runs
	// set "development" to ignore forwarded host headers and drop the Secure
	// cookie flag.
	Env string `mapstructure:"APP_ENV"`

	// IdentityProviderURL is the base URL of the hosted identity provider. Required.
	IdentityProviderURL string `mapstructure:"IDP_URL"`
	// IdentityProviderKey is the provider's public (anon) API key. Required.
	IdentityProviderKey string `mapstructure:"IDP_ANON_KEY"`
	// OAuthProviders lists the external providers offered through the hosted
	// provider (comma-separated, e.g. "google,github").
	OAuthProviders string `mapstructure:"OAUTH_PROVIDERS"`

	// Optional direct OIDC provider; enabled when OIDCIssuer is set.
	OIDCName         string `mapstructure:"OIDC_NAME"`
	OIDCIssuer       string `mapstructure:"OIDC_ISSUER"`
	OIDCClientID     string `mapstructure:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `mapstructure:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `mapstructure:"OIDC_REDIRECT_URL"`

	// RedisAddr selects the Redis session store; empty uses in-memory sessions.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// SessionTTL is the absolute lifetime of a local session (e.g. "24h").
	SessionTTL string `mapstructure:"SESSION_TTL"`

	// APIBaseURL is the backend REST API.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// APITimeout bounds a single backend call (e.g. "30s"); AI analysis is slow.
	APITimeout string `mapstructure:"API_TIMEOUT"`

	// RedirectAllowlist lists hosts an email link's redirect_to may point at.
	RedirectAllowlist string `mapstructure:"REDIRECT_ALLOWLIST"`

	// OTLPEndpoint enables trace export when set (e.g. http://localhost:4318).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "3000")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("IDP_URL", "")
	v.SetDefault("IDP_ANON_KEY", "")
	v.SetDefault("OAUTH_PROVIDERS", "google")
	v.SetDefault("OIDC_NAME", "oidc")
	v.SetDefault("OIDC_ISSUER", "")
	v.SetDefault("OIDC_CLIENT_ID", "")
	v.SetDefault("OIDC_CLIENT_SECRET", "")
	v.SetDefault("OIDC_REDIRECT_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("API_TIMEOUT", "30s")
	v.SetDefault("REDIRECT_ALLOWLIST", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AppPort == "" {
		return errors.New("config: APP_PORT must be set")
	}
	if c.IdentityProviderURL == "" {
		return errors.New("config: IDP_URL must be set")
	}
	if u, err := url.Parse(c.IdentityProviderURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: IDP_URL must be an absolute URL")
	}
	if c.IdentityProviderKey == "" {
		return errors.New("config: IDP_ANON_KEY must be set")
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: API_BASE_URL must be an absolute URL")
	}
	if c.OIDCIssuer != "" && (c.OIDCClientID == "" || c.OIDCRedirectURL == "") {
		return errors.New("config: OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required with OIDC_ISSUER")
	}
	return nil
}

// IsLocal reports whether the app runs in local development.
func (c *Config) IsLocal() bool {
	return resolver.IsLocal(c.Env)
}

// SessionLifetime parses SessionTTL. Returns 24h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// APIRequestTimeout parses APITimeout. Returns 30s if unset or invalid.
func (c *Config) APIRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.APITimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// OAuthProviderList returns the configured OAuth providers.
func (c *Config) OAuthProviderList() []string {
	return splitList(c.OAuthProviders)
}

// RedirectHosts returns the redirect_to allowlist.
func (c *Config) RedirectHosts() []string {
	return splitList(c.RedirectAllowlist)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
