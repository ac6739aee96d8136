package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"xfoli-web/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	exchange func(code, verifier string) (*auth.ExchangeResult, error)
	verify   func(tokenHash, otpType string) (*auth.ExchangeResult, error)
	calls    int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ExchangeCode(_ context.Context, code, verifier string) (*auth.ExchangeResult, error) {
	f.calls++
	return f.exchange(code, verifier)
}

func (f *fakeProvider) VerifyOTP(_ context.Context, tokenHash, otpType string) (*auth.ExchangeResult, error) {
	f.calls++
	return f.verify(tokenHash, otpType)
}

func returning(res *auth.ExchangeResult, err error) *fakeProvider {
	return &fakeProvider{
		exchange: func(string, string) (*auth.ExchangeResult, error) { return res, err },
		verify:   func(string, string) (*auth.ExchangeResult, error) { return res, err },
	}
}

func full(email string) *auth.ExchangeResult {
	return &auth.ExchangeResult{
		Session: &auth.Session{AccessToken: "access", RefreshToken: "refresh"},
		User:    &auth.User{ID: "u1", Email: email},
	}
}

func TestResolveCode_MissingCode(t *testing.T) {
	p := returning(full("a@b.com"), nil)
	out := New(p).ResolveCode(context.Background(), CodeRequest{})

	assert.Equal(t, KindNoCode, out.Kind)
	assert.Equal(t, ErrorPagePath, out.Path)
	assert.Equal(t, "no_code", out.Get("error"))
	assert.Zero(t, p.calls, "provider must not be called without a code")
}

func TestResolveToken_MissingParams(t *testing.T) {
	tests := []struct {
		name string
		req  TokenRequest
	}{
		{"empty", TokenRequest{}},
		{"no token hash", TokenRequest{Type: "signup"}},
		{"no type", TokenRequest{TokenHash: "abc"}},
		{"only redirect", TokenRequest{RedirectTo: "/dashboard"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := returning(full("a@b.com"), nil)
			out := New(p).ResolveToken(context.Background(), tt.req)

			assert.Equal(t, KindMissingParams, out.Kind)
			assert.Equal(t, "missing_params", out.Get("error"))
			assert.Zero(t, p.calls)
		})
	}
}

func TestResolveCode_ProviderErrorParam(t *testing.T) {
	tests := []struct {
		name     string
		req      CodeRequest
		wantKind Kind
	}{
		{
			name:     "access denied",
			req:      CodeRequest{Error: "access_denied", ErrorDescription: "User denied access & left"},
			wantKind: KindAuthError,
		},
		{
			name:     "expired in description",
			req:      CodeRequest{Error: "access_denied", ErrorDescription: "Email link is invalid or has EXPIRED"},
			wantKind: KindExpired,
		},
		{
			name:     "expired error code",
			req:      CodeRequest{Error: "access_denied", ErrorCode: "otp_expired", ErrorDescription: "Email link is invalid"},
			wantKind: KindExpired,
		},
		{
			name:     "error with code present",
			req:      CodeRequest{Error: "server_error", Code: "abc", ErrorDescription: "boom"},
			wantKind: KindAuthError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := returning(full("a@b.com"), nil)
			out := New(p).ResolveCode(context.Background(), tt.req)

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.req.ErrorDescription, out.Get("description"))
			assert.Zero(t, p.calls)

			u, err := url.Parse(out.Location(""))
			require.NoError(t, err)
			assert.Equal(t, tt.req.ErrorDescription, u.Query().Get("description"))
		})
	}
}

func TestResolve_ExpiredAlwaysWins(t *testing.T) {
	for _, msg := range []string{
		"Token has expired or is invalid",
		"Email link is invalid or has Expired",
		"EXPIRED",
	} {
		p := returning(nil, &auth.ProviderError{Status: 403, Message: msg})
		r := New(p)

		code := r.ResolveCode(context.Background(), CodeRequest{Code: "c"})
		token := r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup"})

		assert.Equal(t, KindExpired, code.Kind, msg)
		assert.Equal(t, KindExpired, token.Kind, msg)
	}
}

func TestResolve_AlreadyUsedIsNotAnError(t *testing.T) {
	p := returning(nil, &auth.ProviderError{Status: 400, Message: "Link has already been used"})
	r := New(p)

	for _, out := range []Outcome{
		r.ResolveCode(context.Background(), CodeRequest{Code: "c"}),
		r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup"}),
	} {
		assert.False(t, out.IsError())
		assert.Equal(t, SignInPath, out.Path)
		assert.Equal(t, "true", out.Get("confirmed"))
		assert.Equal(t, MessageAlreadyConfirmed, out.Get("message"))
		assert.Equal(t, "/signin?confirmed=true&message=already_confirmed", out.Location(""))
		assert.Nil(t, out.Session)
	}
}

func TestResolve_OtherRejections(t *testing.T) {
	p := returning(nil, &auth.ProviderError{Status: 400, Message: "invalid flow state, no valid flow state found"})
	r := New(p)

	code := r.ResolveCode(context.Background(), CodeRequest{Code: "c"})
	assert.Equal(t, KindAuthError, code.Kind)
	assert.Equal(t, "invalid flow state, no valid flow state found", code.Get("description"))

	token := r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup"})
	assert.Equal(t, KindVerifyError, token.Kind)
	assert.Equal(t, "invalid flow state, no valid flow state found", token.Get("description"))
}

func TestResolveCode_Success(t *testing.T) {
	res := full("a@b.com")
	p := &fakeProvider{
		exchange: func(code, verifier string) (*auth.ExchangeResult, error) {
			assert.Equal(t, "the-code", code)
			assert.Equal(t, "the-verifier", verifier)
			return res, nil
		},
	}

	out := New(p).ResolveCode(context.Background(), CodeRequest{Code: "the-code", CodeVerifier: "the-verifier"})

	assert.Equal(t, "/signin?confirmed=true&email=a%40b.com", out.Location(""))
	assert.Same(t, res.Session, out.Session)
	assert.False(t, out.IsError())
}

func TestResolve_UserWithoutSession(t *testing.T) {
	res := &auth.ExchangeResult{User: &auth.User{ID: "u1", Email: "a@b.com"}}
	r := New(returning(res, nil))

	want := "/signin?confirmed=true&email=a%40b.com&message=already_confirmed"
	assert.Equal(t, want, r.ResolveCode(context.Background(), CodeRequest{Code: "c"}).Location(""))
	assert.Equal(t, want, r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "email"}).Location(""))
}

func TestResolve_EmptyEmailStillSent(t *testing.T) {
	r := New(returning(full(""), nil))

	out := r.ResolveCode(context.Background(), CodeRequest{Code: "c"})
	assert.Equal(t, "/signin?confirmed=true&email=", out.Location(""))

	r = New(returning(&auth.ExchangeResult{User: &auth.User{ID: "u1"}}, nil))
	out = r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "email"})
	assert.Equal(t, "/signin?confirmed=true&email=&message=already_confirmed", out.Location(""))
}

func TestResolve_NoUser(t *testing.T) {
	for _, res := range []*auth.ExchangeResult{
		nil,
		{},
		{Session: &auth.Session{AccessToken: "a"}},
	} {
		r := New(returning(res, nil))

		assert.Equal(t, KindNoSession, r.ResolveCode(context.Background(), CodeRequest{Code: "c"}).Kind)
		assert.Equal(t, KindNoUser, r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "email"}).Kind)
	}
}

func TestResolve_FaultsBecomeException(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
	}{
		{"transport error", returning(nil, errors.New("dial tcp: connection refused"))},
		{"wrapped non-provider error", returning(nil, errors.Join(errors.New("decode"), context.DeadlineExceeded))},
		{"panic", &fakeProvider{
			exchange: func(string, string) (*auth.ExchangeResult, error) { panic("nil map") },
			verify:   func(string, string) (*auth.ExchangeResult, error) { panic("nil map") },
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.p)

			var code, token Outcome
			require.NotPanics(t, func() {
				code = r.ResolveCode(context.Background(), CodeRequest{Code: "c"})
				token = r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "email"})
			})
			assert.Equal(t, KindException, code.Kind)
			assert.Equal(t, KindException, token.Kind)
		})
	}
}

func TestResolve_WrappedProviderErrorIsRejection(t *testing.T) {
	err := errors.Join(errors.New("exchange"), &auth.ProviderError{Message: "bad code"})
	out := New(returning(nil, err)).ResolveCode(context.Background(), CodeRequest{Code: "c"})

	assert.Equal(t, KindAuthError, out.Kind)
	assert.Equal(t, "bad code", out.Get("description"))
}

// singleUseProvider mimics the provider's single-use codes: the first
// exchange wins, later ones are rejected.
type singleUseProvider struct {
	mu   sync.Mutex
	used map[string]bool
}

func (p *singleUseProvider) Name() string { return "single-use" }

func (p *singleUseProvider) consume(key string) (*auth.ExchangeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used[key] {
		return nil, &auth.ProviderError{Status: 403, Message: "Email link has already been used"}
	}
	p.used[key] = true
	return full("a@b.com"), nil
}

func (p *singleUseProvider) ExchangeCode(_ context.Context, code, _ string) (*auth.ExchangeResult, error) {
	return p.consume(code)
}

func (p *singleUseProvider) VerifyOTP(_ context.Context, tokenHash, _ string) (*auth.ExchangeResult, error) {
	return p.consume(tokenHash)
}

func TestResolve_ResubmissionNeverYieldsSecondSession(t *testing.T) {
	r := New(&singleUseProvider{used: map[string]bool{}})

	first := r.ResolveCode(context.Background(), CodeRequest{Code: "c"})
	second := r.ResolveCode(context.Background(), CodeRequest{Code: "c"})

	require.NotNil(t, first.Session)
	assert.Nil(t, second.Session)
	assert.Equal(t, MessageAlreadyConfirmed, second.Get("message"))

	firstToken := r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup"})
	secondToken := r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup"})
	require.NotNil(t, firstToken.Session)
	assert.Nil(t, secondToken.Session)
}

func TestResolveToken_RedirectTo(t *testing.T) {
	tests := []struct {
		name       string
		redirectTo string
		want       string
	}{
		{"same origin path", "/dashboard", "/dashboard"},
		{"allowlisted host", "https://app.xfoli.ai/welcome", "https://app.xfoli.ai/welcome"},
		{"foreign host", "https://evil.example/phish", "/signin?confirmed=true&email=a%40b.com"},
		{"protocol relative", "//evil.example/phish", "/signin?confirmed=true&email=a%40b.com"},
		{"javascript", "javascript:alert(1)", "/signin?confirmed=true&email=a%40b.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(returning(full("a@b.com"), nil), WithRedirectAllowlist("APP.xfoli.ai"))
			out := r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup", RedirectTo: tt.redirectTo})

			assert.Equal(t, tt.want, out.Location(""))
			assert.NotNil(t, out.Session)
		})
	}
}

func TestResolveToken_RedirectToIgnoredOnError(t *testing.T) {
	r := New(returning(nil, &auth.ProviderError{Message: "expired"}))
	out := r.ResolveToken(context.Background(), TokenRequest{TokenHash: "h", Type: "signup", RedirectTo: "/dashboard"})

	assert.Equal(t, ErrorPagePath, out.Path)
}

func TestOutcome_Location(t *testing.T) {
	out := failure(KindAuthError, "bad thing happened")

	assert.Equal(t,
		"https://app.xfoli.ai/auth/auth-code-error?error=auth_error&description=bad%20thing%20happened",
		out.Location("https://app.xfoli.ai/"),
	)
}

func TestResolveBaseURL(t *testing.T) {
	forwarded := http.Header{}
	forwarded.Set("X-Forwarded-Host", "app.xfoli.ai, proxy.internal")

	assert.Equal(t, "https://app.xfoli.ai", ResolveBaseURL(forwarded, "production", "http://10.0.0.3:3000"))
	assert.Equal(t, "http://localhost:3000", ResolveBaseURL(forwarded, "development", "http://localhost:3000/"))
	assert.Equal(t, "http://10.0.0.3:3000", ResolveBaseURL(http.Header{}, "production", "http://10.0.0.3:3000"))
}

func TestRequestOrigin(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.test/auth/callback", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", RequestOrigin(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://example.test", RequestOrigin(req))
}
