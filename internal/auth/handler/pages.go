package handler

import (
	"embed"
	"html/template"
	"net/http"

	"xfoli-web/internal/auth/resolver"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderPage(c *gin.Context, status int, name string, data any) {
	c.Render(status, render.HTML{
		Template: pages,
		Name:     name,
		Data:     data,
	})
}

type action struct {
	Text string
	Href string
}

// errorDetails is what the error page shows for one failure kind.
type errorDetails struct {
	Title       string
	Message     string
	Suggestions []string
	Primary     action
	Secondary   action
}

// detailsFor picks the page content for a failure kind. Kinds whose
// description comes from the provider show it as the message.
func detailsFor(kind resolver.Kind, description string) errorDetails {
	orDefault := func(fallback string) string {
		if description != "" {
			return description
		}
		return fallback
	}

	switch kind {
	case resolver.KindNoSession:
		return errorDetails{
			Title:   "Email Link Already Used",
			Message: "This confirmation link has already been used or has expired.",
			Suggestions: []string{
				"The link has already been used to confirm your email",
				"The link has expired (usually after 24 hours)",
				"You may already be able to sign in with your account",
			},
			Primary:   action{"Try signing in", resolver.SignInPath},
			Secondary: action{"Request new confirmation", "/signup"},
		}
	case resolver.KindExpired:
		return errorDetails{
			Title:   "Confirmation Link Expired",
			Message: orDefault("Confirmation link has expired. Please request a new one."),
			Suggestions: []string{
				"Confirmation links are only valid for a limited time",
				"A newer confirmation email may have replaced this one",
				"You may already be able to sign in with your account",
			},
			Primary:   action{"Request new confirmation", "/signup"},
			Secondary: action{"Back to sign in", resolver.SignInPath},
		}
	case resolver.KindAuthError, resolver.KindVerifyError:
		return errorDetails{
			Title:   "Authentication Error",
			Message: orDefault("There was an error confirming your email address."),
			Suggestions: []string{
				"The confirmation link may be invalid",
				"There was a temporary server issue",
				"Your account may already be confirmed",
			},
			Primary:   action{"Try signing in", resolver.SignInPath},
			Secondary: action{"Contact support", "/signup"},
		}
	case resolver.KindNoCode, resolver.KindMissingParams:
		return errorDetails{
			Title:   "Invalid Confirmation Link",
			Message: "The confirmation link format is invalid.",
			Suggestions: []string{
				"The link may have been copied incorrectly",
				"The link may be from an old email",
				"Try clicking the link directly from your email",
			},
			Primary:   action{"Request new link", "/signup"},
			Secondary: action{"Back to sign in", resolver.SignInPath},
		}
	default:
		return errorDetails{
			Title:   "Email Confirmation Error",
			Message: orDefault("Sorry, we weren't able to confirm your email address."),
			Suggestions: []string{
				"The confirmation link has expired",
				"The link has already been used",
				"There was a technical issue",
			},
			Primary:   action{"Try signing up again", "/signup"},
			Secondary: action{"Back to sign in", resolver.SignInPath},
		}
	}
}

func (h *Handler) errorPage(c *gin.Context) {
	kind := resolver.Kind(c.Query("error"))
	renderPage(c, http.StatusOK, "error.html", detailsFor(kind, c.Query("description")))
}
