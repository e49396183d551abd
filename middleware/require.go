package middleware

import (
	"net/http"

	dashAuth "github.com/MrEthical07/dashAuth"
)

// RequirePermission runs [Guard] and then demands perm on the session.
func RequirePermission(engine *dashAuth.Engine, perm dashAuth.Permission) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SessionFromContext(r.Context())
			if !ok || !s.User.Can(perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
