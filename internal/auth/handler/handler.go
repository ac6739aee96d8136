package handler

import (
	"errors"
	"net/http"
	"time"

	"xfoli-web/internal/auth"
	"xfoli-web/internal/auth/provider"
	"xfoli-web/internal/auth/resolver"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/session"

	"github.com/gin-gonic/gin"
)

// Options configures the auth handlers.
type Options struct {
	// OAuthProviders are the external providers offered through the default
	// (hosted) identity provider, e.g. "google".
	OAuthProviders []string
	// RedirectAllowlist lists hosts an email link's redirect_to may point at.
	RedirectAllowlist []string
	// Env is the application environment; local environments ignore
	// forwarded host headers and issue cookies without Secure.
	Env        string
	SessionTTL time.Duration
}

type Handler struct {
	providers      *provider.Registry
	sessionStore   session.Store
	password       provider.PasswordAuthenticator
	starter        provider.OAuthStarter
	oauthProviders map[string]struct{}
	allowlist      []string
	env            string
	sessionTTL     time.Duration
	now            func() time.Time
}

// NewHandler builds the auth handlers. Password and OAuth start flows are
// served by the default provider when it supports them.
func NewHandler(
	registry *provider.Registry,
	sessionStore session.Store,
	opts Options,
) *Handler {
	h := &Handler{
		providers:      registry,
		sessionStore:   sessionStore,
		oauthProviders: make(map[string]struct{}),
		allowlist:      opts.RedirectAllowlist,
		env:            opts.Env,
		sessionTTL:     opts.SessionTTL,
		now:            time.Now,
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 24 * time.Hour
	}
	for _, name := range opts.OAuthProviders {
		h.oauthProviders[name] = struct{}{}
	}
	if def := registry.Default(); def != nil {
		h.password, _ = def.(provider.PasswordAuthenticator)
		h.starter, _ = def.(provider.OAuthStarter)
	}
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/callback", h.callback)
	r.GET("/auth/callback/:provider", h.callback)
	r.GET("/auth/confirm", h.confirm)
	r.GET("/auth/auth-code-error", h.errorPage)
	r.GET("/auth/oauth/:provider", h.login)

	r.GET("/signin", h.signinPage)
	r.POST("/auth/signin", h.SignIn)
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/recover", h.Recover)
	r.POST("/auth/logout", h.Logout)
}

// login starts an OAuth flow, either through the hosted provider or directly
// against a registered OIDC provider.
func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	starter, oauthProvider, redirectTo, ok := h.oauthTarget(c, providerName)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	state, err := generateState(c, h.secure())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	_, codeChallenge, err := generatePKCE(c, h.secure())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}

	authURL, err := starter.AuthCodeURL(oauthProvider, redirectTo, state, codeChallenge)
	if err != nil {
		logger.Error("failed to build authorize url", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) oauthTarget(c *gin.Context, name string) (provider.OAuthStarter, string, string, bool) {
	if _, ok := h.oauthProviders[name]; ok && h.starter != nil {
		return h.starter, name, h.baseURL(c) + "/auth/callback", true
	}

	def := h.providers.Default()
	if def != nil && def.Name() == name {
		return nil, "", "", false
	}
	p, err := h.providers.Get(name)
	if err != nil {
		return nil, "", "", false
	}
	starter, ok := p.(provider.OAuthStarter)
	if !ok {
		return nil, "", "", false
	}
	return starter, name, "", true
}

// callback handles the authorization-code redirect from the identity
// provider. It always answers with a redirect.
func (h *Handler) callback(c *gin.Context) {
	p := h.providers.Default()
	if name := c.Param("provider"); name != "" {
		var err error
		p, err = h.providers.Get(name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "unknown identity provider",
			})
			return
		}
	}

	req := resolver.CodeRequest{
		Code:             c.Query("code"),
		Error:            c.Query("error"),
		ErrorCode:        c.Query("error_code"),
		ErrorDescription: c.Query("error_description"),
		CodeVerifier:     readPKCEVerifier(c),
	}
	if req.Error == "" && !validateState(c) {
		req.Error = "invalid_state"
		req.ErrorDescription = "invalid oauth state"
	}
	clearOAuthCookies(c, h.secure())

	out := h.resolverFor(p).ResolveCode(c.Request.Context(), req)
	h.finish(c, out)
}

// confirm handles email links carrying a token hash.
func (h *Handler) confirm(c *gin.Context) {
	req := resolver.TokenRequest{
		TokenHash:  c.Query("token_hash"),
		Type:       c.Query("type"),
		RedirectTo: c.Query("redirect_to"),
	}

	out := h.resolverFor(h.providers.Default()).ResolveToken(c.Request.Context(), req)
	h.finish(c, out)
}

func (h *Handler) resolverFor(p provider.IdentityProvider) *resolver.Resolver {
	return resolver.New(p, resolver.WithRedirectAllowlist(h.allowlist...))
}

// finish persists a freshly issued provider session, if any, and redirects.
// A failed persist still redirects: the address is confirmed and the user
// can sign in from the target page.
func (h *Handler) finish(c *gin.Context, out resolver.Outcome) {
	if out.Session.Valid() {
		if err := h.startSession(c, out.Session, out.User); err != nil {
			logger.Error("failed to persist session", map[string]any{
				"error": err.Error(),
			})
		}
	}

	c.Redirect(http.StatusFound, out.Location(h.baseURL(c)))
}

// startSession stores a local session for the provider session and sets the
// cookie. Any session the browser already had is dropped first.
func (h *Handler) startSession(c *gin.Context, ps *auth.Session, user *auth.User) error {
	ctx := c.Request.Context()
	opts := h.cookieOptions()

	if old := session.ReadCookie(c.Request, opts); old != "" {
		_ = h.sessionStore.Delete(ctx, old)
	}

	sessionID, err := session.GenerateID()
	if err != nil {
		return err
	}

	sess, err := session.FromAuth(sessionID, ps, user, h.now(), h.sessionTTL)
	if err != nil {
		return err
	}

	if err := h.sessionStore.Create(ctx, sess); err != nil {
		return err
	}

	session.SetCookie(c.Writer, sessionID, sess.ExpiresAt, opts)

	logger.Info("session started", map[string]any{
		"user_id": sess.UserID,
		"ip":      c.ClientIP(),
	})
	return nil
}

func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	opts := h.cookieOptions()

	if sessionID := session.ReadCookie(c.Request, opts); sessionID != "" {
		sess, err := h.sessionStore.Get(ctx, sessionID)
		if err == nil && sess != nil && h.password != nil {
			if err := h.password.SignOut(ctx, sess.AccessToken); err != nil {
				logger.Warn("provider sign-out failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
		_ = h.sessionStore.Delete(ctx, sessionID)

		logger.Info("session ended", map[string]any{
			"ip": c.ClientIP(),
		})
	}

	session.ClearCookie(c.Writer, opts)

	c.Status(http.StatusNoContent)
}

func (h *Handler) baseURL(c *gin.Context) string {
	return resolver.ResolveBaseURL(c.Request.Header, h.env, resolver.RequestOrigin(c.Request))
}

func (h *Handler) secure() bool {
	return !resolver.IsLocal(h.env)
}

func (h *Handler) cookieOptions() session.CookieOptions {
	return session.CookieOptions{Secure: h.secure()}
}

// providerFailure writes the JSON answer for a failed password flow call.
func providerFailure(c *gin.Context, err error, rejectedStatus int) {
	var pe *auth.ProviderError
	if errors.As(err, &pe) {
		c.JSON(rejectedStatus, gin.H{"error": pe.Message})
		return
	}
	logger.Error("identity provider call failed", map[string]any{
		"path":  c.FullPath(),
		"error": err.Error(),
	})
	c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider unavailable"})
}
