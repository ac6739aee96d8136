package resolver

import (
	"net/url"
	"strings"

	"xfoli-web/internal/auth"
)

// Kind classifies a failed callback. It is carried to the error page as the
// "error" query parameter.
type Kind string

const (
	KindAuthError     Kind = "auth_error"
	KindVerifyError   Kind = "verify_error"
	KindExpired       Kind = "expired"
	KindNoCode        Kind = "no_code"
	KindMissingParams Kind = "missing_params"
	KindNoSession     Kind = "no_session"
	KindNoUser        Kind = "no_user"
	KindException     Kind = "exception"
)

const (
	SignInPath    = "/signin"
	ErrorPagePath = "/auth/auth-code-error"

	MessageAlreadyConfirmed = "already_confirmed"
)

// Param is one query parameter. Outcomes keep parameters in insertion order
// so redirect URLs are stable.
type Param struct {
	Key   string
	Value string
}

// Outcome is the single result of resolving a callback: where the browser
// goes next. Session is set only when a fresh provider session was
// established and must be handed to the client.
type Outcome struct {
	Path    string
	Query   []Param
	Kind    Kind // empty for success-style outcomes
	Session *auth.Session
	User    *auth.User
}

// IsError reports whether the outcome points at the error page.
func (o Outcome) IsError() bool {
	return o.Kind != ""
}

// Get returns the value of a query parameter or "".
func (o Outcome) Get(key string) string {
	for _, p := range o.Query {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Location renders the redirect target. base is the external base URL
// (scheme://host) or "" for a relative redirect; absolute paths are kept.
func (o Outcome) Location(base string) string {
	var b strings.Builder
	if !isAbsolute(o.Path) {
		b.WriteString(strings.TrimRight(base, "/"))
	}
	b.WriteString(o.Path)
	for i, p := range o.Query {
		if i == 0 && !strings.Contains(o.Path, "?") {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(encodeComponent(p.Key))
		b.WriteByte('=')
		b.WriteString(encodeComponent(p.Value))
	}
	return b.String()
}

// encodeComponent escapes like encodeURIComponent: spaces become %20 rather
// than '+', so the values read back identically in any query parser.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func isAbsolute(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func failure(kind Kind, description string) Outcome {
	return Outcome{
		Path: ErrorPagePath,
		Kind: kind,
		Query: []Param{
			{Key: "error", Value: string(kind)},
			{Key: "description", Value: description},
		},
	}
}

// confirmed always carries email, empty when the provider returned none.
func confirmed(email string) Outcome {
	return Outcome{Path: SignInPath, Query: []Param{
		{Key: "confirmed", Value: "true"},
		{Key: "email", Value: email},
	}}
}

func alreadyConfirmed(email string) Outcome {
	o := confirmed(email)
	o.Query = append(o.Query, Param{Key: "message", Value: MessageAlreadyConfirmed})
	return o
}
