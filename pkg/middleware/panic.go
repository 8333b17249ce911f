package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"foresttracker/pkg/respond"
)

func Panic(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					Logger(r, base).Error("panic recover", "error", err, "stack", string(debug.Stack()))
					respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
