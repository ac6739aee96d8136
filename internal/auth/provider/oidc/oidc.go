// Package oidc implements an identity provider backed directly by an OpenID
// Connect issuer (Google, Keycloak, ...), bypassing the hosted provider.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xfoli-web/internal/auth"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/telemetry"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider implements OAuth + OIDC authentication against a single issuer.
// It returns identity facts only; no user/session decisions are made here.
type Provider struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    *gooidc.IDTokenVerifier
}

// Config describes one OIDC client registration.
type Config struct {
	Name         string // registry name, e.g. "google"
	Issuer       string // e.g. https://accounts.google.com
	ClientID     string
	ClientSecret string // empty for public clients
	RedirectURL  string
}

// New initializes the provider using issuer discovery.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Name == "" || cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("oidc provider config missing required fields")
	}

	oidcProvider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", cfg.Name, err)
	}

	return newProvider(cfg, oidcProvider.Endpoint(), oidcProvider.Verifier(&gooidc.Config{
		ClientID: cfg.ClientID,
	})), nil
}

func newProvider(cfg Config, ep oauth2.Endpoint, verifier *gooidc.IDTokenVerifier) *Provider {
	return &Provider{
		name: cfg.Name,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes: []string{
				gooidc.ScopeOpenID,
				"profile",
				"email",
			},
		},
		verifier: verifier,
	}
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
// The redirect URL is fixed by the client registration, so redirectTo and
// oauthProvider are ignored.
func (p *Provider) AuthCodeURL(
	oauthProvider string,
	redirectTo string,
	state string,
	codeChallenge string,
) (string, error) {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// ExchangeCode exchanges the authorization code and returns the session plus
// the identity asserted by the ID token.
func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.ExchangeResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "oidc.exchange_code")
	defer span.End()

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}

	token, err := p.oauthConfig.Exchange(ctx, code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, retrieveError(re)
		}
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s did not return id_token", p.name)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("oidc id_token verification failed", map[string]any{
			"provider": p.name,
			"error":    err.Error(),
		})
		var expired *gooidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, &auth.ProviderError{Code: "token_expired", Message: "ID token has expired"}
		}
		return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
	}

	logger.Info("oidc verified", map[string]any{
		"provider":        p.name,
		"issuer":          idToken.Issuer,
		"subject_present": claims.Subject != "",
		"email_present":   claims.Email != "",
		"email_verified":  claims.EmailVerified,
		"expiry_unix":     idToken.Expiry.Unix(),
	})

	res := &auth.ExchangeResult{
		Session: &auth.Session{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			ExpiresAt:    token.Expiry,
		},
	}
	if claims.Subject != "" {
		u := &auth.User{ID: claims.Subject, Email: claims.Email}
		if claims.EmailVerified {
			now := time.Now()
			u.EmailConfirmedAt = &now
		}
		res.User = u
	}
	return res, nil
}

// VerifyOTP is not part of OIDC; email links are issued by the hosted
// provider only.
func (p *Provider) VerifyOTP(
	ctx context.Context,
	tokenHash string,
	otpType string,
) (*auth.ExchangeResult, error) {
	return nil, &auth.ProviderError{
		Code:    "unsupported",
		Message: fmt.Sprintf("token verification is not supported by %s", p.name),
	}
}

func retrieveError(re *oauth2.RetrieveError) *auth.ProviderError {
	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}
	if msg == "" {
		msg = "token exchange rejected"
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	return &auth.ProviderError{
		Status:  status,
		Code:    re.ErrorCode,
		Message: msg,
	}
}
