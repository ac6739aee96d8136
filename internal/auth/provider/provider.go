package provider

import (
	"context"

	"xfoli-web/internal/auth"
)

// IdentityProvider is the external collaborator that turns one-time codes and
// token hashes into sessions. Implementations return facts only: rejections
// are reported as *auth.ProviderError, anything else is a fault.
// They must not create users or local sessions.
type IdentityProvider interface {
	// Name returns the provider identifier (e.g. "gotrue", "google").
	Name() string

	// ExchangeCode exchanges an authorization code for a session.
	// codeVerifier is the PKCE verifier and may be empty.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*auth.ExchangeResult, error)

	// VerifyOTP verifies a one-time token hash of the given type
	// (signup, email, recovery, invite, magiclink, email_change).
	VerifyOTP(
		ctx context.Context,
		tokenHash string,
		otpType string,
	) (*auth.ExchangeResult, error)
}

// OAuthStarter builds the URL that starts an OAuth flow.
// State and PKCE parameters are provided by the caller.
type OAuthStarter interface {
	AuthCodeURL(
		oauthProvider string,
		redirectTo string,
		state string,
		codeChallenge string,
	) (string, error)
}

// PasswordAuthenticator covers the email/password flows.
type PasswordAuthenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.ExchangeResult, error)
	SignUp(ctx context.Context, email, password, emailRedirectTo string) (*auth.ExchangeResult, error)
	SignOut(ctx context.Context, accessToken string) error
	RecoverPassword(ctx context.Context, email, redirectTo string) error
}

// Refresher renews a provider session before its access token expires.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*auth.ExchangeResult, error)
}
