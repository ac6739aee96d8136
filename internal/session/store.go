package session

import (
	"context"
	"errors"
	"time"

	"xfoli-web/internal/auth"
)

// Session is the server-side half of a signed-in browser. It holds the
// provider session so the access token never has to live in the browser.
type Session struct {
	SessionID            string    `json:"session_id"`
	UserID               string    `json:"user_id"`
	Email                string    `json:"email,omitempty"`
	AccessToken          string    `json:"access_token"`
	RefreshToken         string    `json:"refresh_token,omitempty"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"` // absolute expiry
}

// Expired reports whether the session or its access token is past expiry.
func (s *Session) Expired(now time.Time) bool {
	if now.After(s.ExpiresAt) {
		return true
	}
	return !s.AccessTokenExpiresAt.IsZero() && now.After(s.AccessTokenExpiresAt)
}

// AccessTokenExpired reports whether only the provider access token has run
// out while the local session is still alive.
func (s *Session) AccessTokenExpired(now time.Time) bool {
	return !s.AccessTokenExpiresAt.IsZero() && now.After(s.AccessTokenExpiresAt) && !now.After(s.ExpiresAt)
}

// Refresh replaces the provider credentials after a token refresh.
func (s *Session) Refresh(ps *auth.Session) {
	s.AccessToken = ps.AccessToken
	if ps.RefreshToken != "" {
		s.RefreshToken = ps.RefreshToken
	}
	s.AccessTokenExpiresAt = ps.ExpiresAt
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) when the session does not exist.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrNoAccessToken = errors.New("session: provider session has no access token")

// FromAuth builds a new session from a provider session. The local session
// never outlives ttl.
func FromAuth(
	sessionID string,
	ps *auth.Session,
	user *auth.User,
	now time.Time,
	ttl time.Duration,
) (Session, error) {
	if !ps.Valid() {
		return Session{}, ErrNoAccessToken
	}

	s := Session{
		SessionID:            sessionID,
		AccessToken:          ps.AccessToken,
		RefreshToken:         ps.RefreshToken,
		AccessTokenExpiresAt: ps.ExpiresAt,
		CreatedAt:            now,
		ExpiresAt:            now.Add(ttl),
	}
	if user != nil {
		s.UserID = user.ID
		s.Email = user.Email
	}
	return s, nil
}
