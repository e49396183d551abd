package middleware

import (
	"context"
	"net/http"

	dashAuth "github.com/MrEthical07/dashAuth"
	"github.com/MrEthical07/dashAuth/session"
)

type sessionContextKey struct{}

// SessionFromContext returns the session stored by [Guard].
func SessionFromContext(ctx context.Context) (dashAuth.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(dashAuth.Session)
	return s, ok
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s dashAuth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// Guard parses the session cookies and authorizes the request path.
//
// Unauthenticated requests get 303 to the sign-in page with the request URI as
// callbackUrl; stale credential cookies are expired on the way. The sign-in
// page itself is always served. Forbidden requests get 403.
func Guard(engine *dashAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			onSignIn := session.IsSignInPath(r.URL.Path, engine.SignInPath())
			parsed := engine.ParseRequest(r)

			switch engine.Authorize(r.Context(), parsed, r.URL.Path) {
			case dashAuth.DecisionAllow:
				auth := parsed.(dashAuth.Authenticated)
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), auth.Session)))
			case dashAuth.DecisionForbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				if onSignIn {
					next.ServeHTTP(w, r)
					return
				}
				if un, ok := parsed.(dashAuth.Unauthenticated); ok && un.Reason != session.ReasonMissingToken {
					for _, c := range engine.ExpiredCookies() {
						http.SetCookie(w, c)
					}
				}
				http.Redirect(w, r, engine.SignInRedirect(r.URL.RequestURI()), http.StatusSeeOther)
			}
		})
	}
}
