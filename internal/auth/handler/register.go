package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SignUp registers the user with the identity provider. The confirmation
// email links back to /auth/confirm on this host.
func (h *Handler) SignUp(c *gin.Context) {
	var req registerRequest
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
		c.JSON(http.StatusNotImplemented, gin.H{"error": "sign-up is not available"})
		return
	}

	emailRedirectTo := h.baseURL(c) + "/auth/confirm"

	res, err := h.password.SignUp(c.Request.Context(), req.Email, req.Password, emailRedirectTo)
	if err != nil {
		providerFailure(c, err, http.StatusBadRequest)
		return
	}

	// Providers with auto-confirm enabled sign the user in right away.
	if res.HasSession() {
		if err := h.startSession(c, res.Session, res.User); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "signed_in"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "confirmation_sent",
		"email":  res.Email(),
	})
}
