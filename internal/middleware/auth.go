package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/sharebox/internal/ctxkeys"
	"github.com/templui/sharebox/internal/service"
)

// sessionToken returns the bearer token or, failing that, the session cookie.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	authz := r.Header.Get("Authorization")
	if bearer, ok := strings.CutPrefix(authz, "Bearer "); ok && bearer != "" {
		return strings.TrimSpace(bearer), false
	}

	cookie, err := r.Cookie(service.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// AuthMiddleware checks for a session token and adds the user to context if valid
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := sessionToken(r)
			if token == "" {
				// No token, continue without auth
				next.ServeHTTP(w, r)
				return
			}

			user, err := authService.Authenticate(r.Context(), token, requestIP(r))
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) {
					slog.Warn("session rejected", "error", err, "ip", requestIP(r))
				}
				// Invalid session, clear cookie and continue
				if fromCookie {
					authService.ClearJWTCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if user == nil {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireAdmin rejects requests from users without the administrator flag
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if !user.IsAdmin {
			writeError(w, r, http.StatusForbidden, "administrator privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
