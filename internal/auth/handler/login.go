package handler

import (
	"net/http"
	"sort"
	"strings"

	"xfoli-web/internal/auth/resolver"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SignIn runs the provider's password grant and starts a local session.
func (h *Handler) SignIn(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all fields."})
		return
	}
	if h.password == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "password sign-in is not available"})
		return
	}

	res, err := h.password.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		providerFailure(c, err, http.StatusUnauthorized)
		return
	}
	if !res.HasSession() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No session data received"})
		return
	}

	if err := h.startSession(c, res.Session, res.User); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "signed_in"})
}

type recoverRequest struct {
	Email string `json:"email" form:"email"`
}

// Recover sends a password reset email.
func (h *Handler) Recover(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter your email address first."})
		return
	}
	if h.password == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "password reset is not available"})
		return
	}

	redirectTo := h.baseURL(c) + resolver.SignInPath
	if err := h.password.RecoverPassword(c.Request.Context(), strings.TrimSpace(req.Email), redirectTo); err != nil {
		providerFailure(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recovery_sent"})
}

type signinPage struct {
	Message        string
	Email          string
	OAuthProviders []string
}

func (h *Handler) signinPage(c *gin.Context) {
	providers := make([]string, 0, len(h.oauthProviders))
	for name := range h.oauthProviders {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	renderPage(c, http.StatusOK, "signin.html", signinPage{
		Message:        signinBanner(c.Query("confirmed"), c.Query("email"), c.Query("message")),
		Email:          c.Query("email"),
		OAuthProviders: providers,
	})
}

// signinBanner is the notice shown above the sign-in form after an email
// confirmation redirect.
func signinBanner(confirmed, email, message string) string {
	if confirmed != "true" {
		return ""
	}
	if message == resolver.MessageAlreadyConfirmed {
		if email != "" {
			return "Your email " + email + " was already confirmed. You can sign in now."
		}
		return "Your email was already confirmed. You can sign in now."
	}
	if email != "" {
		return "Email confirmed successfully for " + email + "! You can now sign in."
	}
	return "Email confirmed successfully! You can now sign in."
}
