package resolver

import (
	"net/http"
	"strings"
)

// IsLocal reports whether env names a local development environment, where
// forwarded headers are not trusted.
func IsLocal(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// ResolveBaseURL returns the external scheme://host redirects are built on.
// Outside local environments a forwarded host set by the proxy wins over the
// origin the request reached us on.
func ResolveBaseURL(h http.Header, env string, origin string) string {
	if !IsLocal(env) {
		if host := firstValue(h.Get("X-Forwarded-Host")); host != "" {
			return "https://" + host
		}
	}
	return strings.TrimRight(origin, "/")
}

// RequestOrigin reconstructs scheme://host for an incoming request.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(firstValue(r.Header.Get("X-Forwarded-Proto")), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
