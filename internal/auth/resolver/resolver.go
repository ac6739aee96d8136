package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"xfoli-web/internal/auth"
	"xfoli-web/internal/auth/provider"
	"xfoli-web/internal/logger"
)

// CodeRequest is the query of an authorization-code redirect
// (/auth/callback).
type CodeRequest struct {
	Code             string
	Error            string
	ErrorCode        string
	ErrorDescription string
	CodeVerifier     string // PKCE verifier from the client cookie, may be empty
}

// TokenRequest is the query of an email token link (/auth/confirm).
type TokenRequest struct {
	TokenHash  string
	Type       string
	RedirectTo string
}

const (
	descNoCode        = "Invalid confirmation link format"
	descMissingParams = "Invalid confirmation link - missing required parameters"
	descExpired       = "Confirmation link has expired. Please request a new one."
)

// flow holds what differs between the code-exchange and token-verification
// endpoints; the decision table itself is shared.
type flow struct {
	name      string
	rejected  Kind
	empty     Kind
	emptyDesc string
	faultDesc string
}

var (
	codeFlow = flow{
		name:      "callback",
		rejected:  KindAuthError,
		empty:     KindNoSession,
		emptyDesc: "Email confirmation link may have expired or already been used",
		faultDesc: "An unexpected error occurred during email confirmation",
	}
	tokenFlow = flow{
		name:      "confirm",
		rejected:  KindVerifyError,
		empty:     KindNoUser,
		emptyDesc: "Email verification failed - no user data returned",
		faultDesc: "An unexpected error occurred during email verification",
	}
)

// Resolver turns identity-provider redirects into exactly one redirect
// outcome. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	provider  provider.IdentityProvider
	allowlist map[string]struct{}
}

type Option func(*Resolver)

// WithRedirectAllowlist lists the hosts an absolute redirect_to may point at.
// Relative paths on the same origin are always accepted.
func WithRedirectAllowlist(hosts ...string) Option {
	return func(r *Resolver) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				r.allowlist[h] = struct{}{}
			}
		}
	}
}

func New(p provider.IdentityProvider, opts ...Option) *Resolver {
	r := &Resolver{
		provider:  p,
		allowlist: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveCode handles an authorization-code redirect.
func (r *Resolver) ResolveCode(ctx context.Context, req CodeRequest) Outcome {
	if req.Error != "" {
		kind := KindAuthError
		if containsFold(req.Error, "expired") ||
			containsFold(req.ErrorCode, "expired") ||
			containsFold(req.ErrorDescription, "expired") {
			kind = KindExpired
		}
		logger.Warn("auth callback returned provider error", map[string]any{
			"flow":  codeFlow.name,
			"error": req.Error,
			"kind":  kind,
		})
		return failure(kind, req.ErrorDescription)
	}

	if req.Code == "" {
		logger.Warn("auth callback missing code", map[string]any{"flow": codeFlow.name})
		return failure(KindNoCode, descNoCode)
	}

	v := call(ctx, func(ctx context.Context) (*auth.ExchangeResult, error) {
		return r.provider.ExchangeCode(ctx, req.Code, req.CodeVerifier)
	})
	return decide(codeFlow, v)
}

// ResolveToken handles an email token link.
func (r *Resolver) ResolveToken(ctx context.Context, req TokenRequest) Outcome {
	if req.TokenHash == "" || req.Type == "" {
		logger.Warn("auth confirm missing parameters", map[string]any{
			"flow":           tokenFlow.name,
			"has_token_hash": req.TokenHash != "",
			"has_type":       req.Type != "",
		})
		return failure(KindMissingParams, descMissingParams)
	}

	v := call(ctx, func(ctx context.Context) (*auth.ExchangeResult, error) {
		return r.provider.VerifyOTP(ctx, req.TokenHash, req.Type)
	})
	out := decide(tokenFlow, v)

	if out.User != nil && !out.IsError() && req.RedirectTo != "" {
		if r.redirectAllowed(req.RedirectTo) {
			out.Path = req.RedirectTo
			out.Query = nil
		} else {
			logger.Warn("auth confirm ignored redirect_to", map[string]any{
				"redirect_to": req.RedirectTo,
			})
		}
	}
	return out
}

// verdict is the tagged result of one provider call: exactly one field is
// set (result may be nil inside a successful call).
type verdict struct {
	result   *auth.ExchangeResult
	rejected *auth.ProviderError
	fault    error
}

// call runs the provider call and converts every way it can end, including a
// panic, into a verdict.
func call(
	ctx context.Context,
	fn func(context.Context) (*auth.ExchangeResult, error),
) (v verdict) {
	defer func() {
		if p := recover(); p != nil {
			v = verdict{fault: fmt.Errorf("provider panic: %v", p)}
		}
	}()

	res, err := fn(ctx)
	if err == nil {
		return verdict{result: res}
	}
	if pe, ok := auth.AsProviderError(err); ok {
		return verdict{rejected: pe}
	}
	return verdict{fault: err}
}

func decide(f flow, v verdict) Outcome {
	switch {
	case v.fault != nil:
		logger.Error("auth provider call failed", map[string]any{
			"flow":  f.name,
			"error": v.fault.Error(),
		})
		return failure(KindException, f.faultDesc)

	case v.rejected != nil:
		return rejected(f, v.rejected)

	case v.result.HasUser() && v.result.HasSession():
		logger.Info("auth confirmation succeeded", map[string]any{
			"flow":    f.name,
			"user_id": v.result.User.ID,
		})
		out := confirmed(v.result.Email())
		out.Session = v.result.Session
		out.User = v.result.User
		return out

	case v.result.HasUser():
		return userWithoutSession(f, v.result.User)

	default:
		logger.Warn("auth provider returned no user", map[string]any{
			"flow":        f.name,
			"has_session": v.result.HasSession(),
		})
		return failure(f.empty, f.emptyDesc)
	}
}

func rejected(f flow, pe *auth.ProviderError) Outcome {
	logger.Warn("auth provider rejected request", map[string]any{
		"flow":    f.name,
		"status":  pe.Status,
		"code":    pe.Code,
		"message": pe.Message,
	})

	switch {
	case containsFold(pe.Message, "expired") || containsFold(pe.Code, "expired"):
		return failure(KindExpired, descExpired)
	case containsFold(pe.Message, "already been used"):
		// The address was confirmed by an earlier click. No user came back.
		return Outcome{Path: SignInPath, Query: []Param{
			{Key: "confirmed", Value: "true"},
			{Key: "message", Value: MessageAlreadyConfirmed},
		}}
	default:
		return failure(f.rejected, pe.Message)
	}
}

// userWithoutSession handles a provider quirk: confirming an address that
// is already confirmed yields the user but no session. This is treated as
// "already confirmed" rather than as an error. It is a heuristic for the
// hosted provider's confirmation flow, not a general rule for every token
// type.
func userWithoutSession(f flow, u *auth.User) Outcome {
	logger.Info("auth provider returned user without session", map[string]any{
		"flow":    f.name,
		"user_id": u.ID,
	})
	out := alreadyConfirmed(u.Email)
	out.User = u
	return out
}

func (r *Resolver) redirectAllowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		// same-origin path; reject protocol-relative and backslash tricks
		return strings.HasPrefix(target, "/") &&
			!strings.HasPrefix(target, "//") &&
			!strings.Contains(target, "\\")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	_, ok := r.allowlist[strings.ToLower(u.Hostname())]
	return ok
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
