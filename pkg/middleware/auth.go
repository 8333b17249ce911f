package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/respond"
	"foresttracker/pkg/session"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// CheckAuth guards API routes. A bearer value is tried as a session id first and
// used as a raw token otherwise; without a header the session cookie is used.
// Whatever token comes out must carry a valid HS256 signature.
func CheckAuth(sessions *session.Manager, secret []byte, base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := Logger(r, base)
			ctx := r.Context()

			auth := r.Header.Get("Authorization")
			cookie := session.IDFromRequest(r)
			logger.Info("checkAuth", "method", r.Method, "path", r.URL.Path,
				"header", auth != "", "cookie", cookie != "")

			var token string
			if value, ok := strings.CutPrefix(auth, "Bearer "); ok {
				value = strings.TrimSpace(value)
				if s, found := sessions.Lookup(ctx, value); found {
					token = s.Token
				} else {
					token = value
				}
			}

			if token == "" && cookie != "" {
				if s, found := sessions.Lookup(ctx, cookie); found {
					token = s.Token
				}
			}

			if token == "" {
				respond.Error(w, http.StatusUnauthorized, respond.CodeAuthRequired, "Authentication required")
				return
			}

			c, err := claims.Verify(token, secret)
			if err != nil {
				logger.Info("checkAuth: token verification failed", "error", err)
				respond.Error(w, http.StatusUnauthorized, respond.CodeInvalidToken, "Invalid or expired token")
				return
			}

			ctx = claims.WithToken(ctx, token)
			ctx = claims.WithPrincipal(ctx, claims.Principal{User: c.Username, Role: c.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth guards pages with the session cookie only. The stored role is trusted
// as recorded at login; the token itself is not put in the request context.
func RequireAuth(sessions *session.Manager, base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := Logger(r, base)
			id := session.IDFromRequest(r)

			if s, ok := sessions.Lookup(r.Context(), id); ok {
				ctx := claims.WithPrincipal(r.Context(), claims.Principal{User: s.User, Role: s.Role})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			logger.Info("requireAuth: no valid session", "path", r.URL.Path, "cookie", id != "")
			http.Redirect(w, r, LoginPath+"?redirect="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		})
	}
}

// RequireRole lets the request through only when the resolved role is role; otherwise it redirects to fallback.
func RequireRole(role claims.Role, fallback string, base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := claims.PrincipalFrom(r.Context())
			if ok && p.Role == role {
				next.ServeHTTP(w, r)
				return
			}

			Logger(r, base).Info("requireRole: access denied", "path", r.URL.Path, "want", role, "have", p.Role)
			http.Redirect(w, r, fallback, http.StatusFound)
		})
	}
}

func RequireAdmin(base *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole(claims.RoleAdmin, DashboardPath, base)
}
