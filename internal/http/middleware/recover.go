package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/tendant/qr-handoff/internal/httputil"
)

// Recover creates middleware that recovers from handler panics, logs the
// stack server-side and reports a generic failure to the caller.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)
					httputil.Error(w, http.StatusInternalServerError, "internal_error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
