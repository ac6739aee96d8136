package middleware

import (
	"context"
	"net/http"
	"time"

	"xfoli-web/internal/auth/provider"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/session"
)

// unexported, collision-proof context keys
type userIDContextKeyType struct{}
type accessTokenContextKeyType struct{}

var (
	userIDKey      = userIDContextKeyType{}
	accessTokenKey = accessTokenContextKeyType{}
)

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// AccessTokenFromContext extracts the provider access token of the
// authenticated session. Backend API calls use it as the bearer token.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(accessTokenKey).(string)
	return tok, ok && tok != ""
}

type AuthMiddleware struct {
	Store     session.Store
	Cookie    session.CookieOptions
	Refresher provider.Refresher // optional
	now       func() time.Time
}

func NewAuthMiddleware(store session.Store, cookie session.CookieOptions, refresher provider.Refresher) *AuthMiddleware {
	return &AuthMiddleware{
		Store:     store,
		Cookie:    cookie,
		Refresher: refresher,
		now:       time.Now,
	}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessionID := session.ReadCookie(r, a.Cookie)
		if sessionID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sess, err := a.Store.Get(ctx, sessionID)
		if err != nil || sess == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		now := a.now()
		if sess.AccessTokenExpired(now) {
			if !a.refresh(ctx, sess) {
				_ = a.Store.Delete(ctx, sessionID)
				session.ClearCookie(w, a.Cookie)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		} else if sess.Expired(now) {
			_ = a.Store.Delete(ctx, sessionID)
			session.ClearCookie(w, a.Cookie)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx = context.WithValue(ctx, userIDKey, sess.UserID)
		ctx = context.WithValue(ctx, accessTokenKey, sess.AccessToken)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// refresh renews the provider session in place and stores it.
func (a *AuthMiddleware) refresh(ctx context.Context, sess *session.Session) bool {
	if a.Refresher == nil || sess.RefreshToken == "" {
		return false
	}

	res, err := a.Refresher.RefreshSession(ctx, sess.RefreshToken)
	if err != nil || !res.HasSession() {
		fields := map[string]any{"user_id": sess.UserID}
		if err != nil {
			fields["error"] = err.Error()
		}
		logger.Warn("session refresh failed", fields)
		return false
	}

	sess.Refresh(res.Session)
	if err := a.Store.Update(ctx, *sess); err != nil {
		logger.Error("failed to store refreshed session", map[string]any{
			"user_id": sess.UserID,
			"error":   err.Error(),
		})
	}
	return true
}
