package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by GinRequireAuth.
const (
	UserIDKey      = "userID"
	AccessTokenKey = "accessToken"
)

// GinRequireAuth adapts the net/http AuthMiddleware to Gin.
// Auth decisions stay session-based and provider-agnostic.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			if id, ok := UserIDFromContext(r.Context()); ok {
				c.Set(UserIDKey, id)
			}
			if tok, ok := AccessTokenFromContext(r.Context()); ok {
				c.Set(AccessTokenKey, tok)
			}
			c.Next()
		})

		handler := auth.RequireAuth(next)
		handler.ServeHTTP(c.Writer, c.Request)

		// If auth middleware already handled the response, stop Gin chain
		if c.Writer.Written() {
			c.Abort()
			return
		}
	}
}
