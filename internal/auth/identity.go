package auth

import "time"

// User is the identity returned by the identity provider after a code
// exchange or a token verification. It contains facts only, no decisions.
type User struct {
	ID               string     // provider-scoped user id (sub)
	Email            string     // may be empty for phone-only identities
	EmailConfirmedAt *time.Time // nil while the address is unconfirmed
}

// Session is a provider-issued credential. The access token is what the
// backend API accepts as a bearer token.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Valid reports whether the session carries a usable access token.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != ""
}

// ExchangeResult is the success variant of a provider call. Either field may
// be nil: some providers confirm an email without issuing a session.
type ExchangeResult struct {
	Session *Session
	User    *User
}

// HasSession reports whether a usable session was issued.
func (r *ExchangeResult) HasSession() bool {
	return r != nil && r.Session.Valid()
}

// HasUser reports whether a user identity was returned.
func (r *ExchangeResult) HasUser() bool {
	return r != nil && r.User != nil
}

// Email returns the user's email or "" when no user is present.
func (r *ExchangeResult) Email() string {
	if !r.HasUser() {
		return ""
	}
	return r.User.Email
}
