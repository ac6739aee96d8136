package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xfoli-web/internal/auth"
	"xfoli-web/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls int
	res   *auth.ExchangeResult
	err   error
}

func (f *fakeRefresher) RefreshSession(_ context.Context, _ string) (*auth.ExchangeResult, error) {
	f.calls++
	return f.res, f.err
}

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		tok, _ := AccessTokenFromContext(r.Context())
		_, _ = w.Write([]byte(id + ":" + tok))
	})
}

func newRequest(sessionID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: session.InsecureCookieName, Value: sessionID})
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Create(ctx, session.Session{
		SessionID:            "sid",
		UserID:               "u1",
		AccessToken:          "access",
		AccessTokenExpiresAt: time.Now().Add(time.Hour),
		ExpiresAt:            time.Now().Add(2 * time.Hour),
	}))

	mw := NewAuthMiddleware(store, session.CookieOptions{}, nil)
	h := mw.RequireAuth(echoHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("sid"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:access", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("unknown"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_RefreshesExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Create(ctx, session.Session{
		SessionID:            "sid",
		UserID:               "u1",
		AccessToken:          "old",
		RefreshToken:         "refresh",
		AccessTokenExpiresAt: time.Now().Add(-time.Minute),
		ExpiresAt:            time.Now().Add(time.Hour),
	}))

	ref := &fakeRefresher{res: &auth.ExchangeResult{
		Session: &auth.Session{AccessToken: "new", RefreshToken: "refresh2", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	h := NewAuthMiddleware(store, session.CookieOptions{}, ref).RequireAuth(echoHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("sid"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:new", rec.Body.String())
	assert.Equal(t, 1, ref.calls)

	sess, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "new", sess.AccessToken)
	assert.Equal(t, "refresh2", sess.RefreshToken)
}

func TestRequireAuth_RefreshFailureDropsSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Create(ctx, session.Session{
		SessionID:            "sid",
		UserID:               "u1",
		AccessToken:          "old",
		RefreshToken:         "refresh",
		AccessTokenExpiresAt: time.Now().Add(-time.Minute),
		ExpiresAt:            time.Now().Add(time.Hour),
	}))

	ref := &fakeRefresher{err: errors.New("refresh token revoked")}
	h := NewAuthMiddleware(store, session.CookieOptions{}, ref).RequireAuth(echoHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("sid"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	sess, _ := store.Get(ctx, "sid")
	assert.Nil(t, sess)
}

func TestGinRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Create(ctx, session.Session{
		SessionID:   "sid",
		UserID:      "u1",
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	r := gin.New()
	api := r.Group("/api")
	api.Use(GinRequireAuth(NewAuthMiddleware(store, session.CookieOptions{}, nil)))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(UserIDKey),
			"token":   c.GetString(AccessTokenKey),
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, newRequest("sid"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","token":"access"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, newRequest(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}
