// Package gotrue talks to the hosted identity provider over its REST API
// (GoTrue-compatible: token, verify, signup, logout and authorize endpoints).
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xfoli-web/internal/auth"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/telemetry"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const providerName = "gotrue"

// Provider implements provider.IdentityProvider, provider.OAuthStarter,
// provider.PasswordAuthenticator and provider.Refresher against a
// GoTrue-compatible server.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// New returns a provider for the identity provider at baseURL, authenticating
// with the public (anon) API key.
func New(baseURL, apiKey string, opts ...Option) (*Provider, error) {
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("gotrue: base url and api key are required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gotrue: invalid base url %q", baseURL)
	}

	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// ExchangeCode exchanges a PKCE authorization code for a session.
func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.ExchangeResult, error) {
	body := map[string]string{
		"auth_code":     code,
		"code_verifier": codeVerifier,
	}
	return p.sessionCall(ctx, "exchange_code", "/token?grant_type=pkce", body, "")
}

// VerifyOTP verifies a token hash delivered by email.
func (p *Provider) VerifyOTP(
	ctx context.Context,
	tokenHash string,
	otpType string,
) (*auth.ExchangeResult, error) {
	body := map[string]string{
		"token_hash": tokenHash,
		"type":       otpType,
	}
	return p.sessionCall(ctx, "verify_otp", "/verify", body, "")
}

// SignInWithPassword runs the password grant.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*auth.ExchangeResult, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	return p.sessionCall(ctx, "sign_in_password", "/token?grant_type=password", body, "")
}

// RefreshSession trades a refresh token for a new session.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*auth.ExchangeResult, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
	}
	return p.sessionCall(ctx, "refresh_session", "/token?grant_type=refresh_token", body, "")
}

// SignUp registers a new user. When the provider requires email
// confirmation the result carries a user and no session.
func (p *Provider) SignUp(ctx context.Context, email, password, emailRedirectTo string) (*auth.ExchangeResult, error) {
	path := "/signup"
	if emailRedirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(emailRedirectTo)
	}
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	return p.sessionCall(ctx, "sign_up", path, body, "")
}

// RecoverPassword sends a password reset email. The provider answers the
// same way whether or not the address is registered.
func (p *Provider) RecoverPassword(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	_, err := p.do(ctx, "recover_password", http.MethodPost, path, map[string]string{"email": email}, "")
	return err
}

// SignOut revokes the session behind accessToken.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	_, err := p.do(ctx, "sign_out", http.MethodPost, "/logout", nil, accessToken)
	return err
}

// AuthCodeURL builds the authorize URL for an external OAuth provider
// (e.g. "google") using PKCE. The state is carried in redirectTo's query
// because the identity provider owns the provider-facing state parameter.
func (p *Provider) AuthCodeURL(
	oauthProvider string,
	redirectTo string,
	state string,
	codeChallenge string,
) (string, error) {
	if oauthProvider == "" {
		return "", errors.New("gotrue: oauth provider is required")
	}

	if state != "" {
		ru, err := url.Parse(redirectTo)
		if err != nil {
			return "", fmt.Errorf("gotrue: invalid redirect_to: %w", err)
		}
		q := ru.Query()
		q.Set("state", state)
		ru.RawQuery = q.Encode()
		redirectTo = ru.String()
	}

	q := url.Values{}
	q.Set("provider", oauthProvider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "s256")

	return p.baseURL + "/authorize?" + q.Encode(), nil
}

// sessionResponse covers the token, verify and signup payloads. Signup
// returns the user at the top level instead of under "user".
type sessionResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user"`

	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

type userJSON struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

// errorResponse covers the error payload variants the provider emits.
type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorResponse) message() string {
	for _, m := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

func (e errorResponse) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	if s, ok := e.Code.(string); ok {
		return s
	}
	return e.Error
}

func (p *Provider) sessionCall(
	ctx context.Context,
	op string,
	path string,
	body any,
	bearer string,
) (*auth.ExchangeResult, error) {
	raw, err := p.do(ctx, op, http.MethodPost, path, body, bearer)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gotrue %s: decode response: %w", op, err)
	}

	return resp.result(), nil
}

func (r sessionResponse) result() *auth.ExchangeResult {
	res := &auth.ExchangeResult{}

	switch {
	case r.User != nil:
		res.User = &auth.User{
			ID:               r.User.ID,
			Email:            r.User.Email,
			EmailConfirmedAt: r.User.EmailConfirmedAt,
		}
	case r.ID != "":
		res.User = &auth.User{
			ID:               r.ID,
			Email:            r.Email,
			EmailConfirmedAt: r.EmailConfirmedAt,
		}
	}

	if r.AccessToken != "" {
		res.Session = &auth.Session{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			TokenType:    r.TokenType,
			ExpiresAt:    r.expiry(),
		}
	}

	return res
}

func (r sessionResponse) expiry() time.Time {
	if r.ExpiresAt > 0 {
		return time.Unix(r.ExpiresAt, 0)
	}
	if exp, ok := TokenExpiry(r.AccessToken); ok {
		return exp
	}
	if r.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. The token is only used to size the local session.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (p *Provider) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body any,
	bearer string,
) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gotrue."+op)
	defer span.End()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gotrue %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gotrue %s: build request: %w", op, err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("gotrue %s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gotrue %s: read response: %w", op, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	span.SetStatus(codes.Error, resp.Status)

	if resp.StatusCode >= 500 {
		logger.Error("identity provider server error", map[string]any{
			"op":     op,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("gotrue %s: server error %d", op, resp.StatusCode)
	}

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err != nil || er.message() == "" {
		return nil, fmt.Errorf("gotrue %s: unexpected response %d", op, resp.StatusCode)
	}

	return nil, &auth.ProviderError{
		Status:  resp.StatusCode,
		Code:    er.code(),
		Message: er.message(),
	}
}
