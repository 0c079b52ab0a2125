package middleware

import (
	"log/slog"
	"net/http"
	"time"

	pkglogger "github.com/echoboardhq/echoboard-segments/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger logs one structured line per request, redacting query strings
// that carry sensitive parameters.
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), requestLevel(ww.Status()), "http_request",
				slog.String("method", r.Method),
				slog.String("path", requestPath(r)),
				slog.Int("status", ww.Status()),
				slog.Int64("bytes", int64(ww.BytesWritten())),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// requestPath rebuilds path?query, collapsing the query when it contains
// parameters that must not reach the logs.
func requestPath(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
		return r.URL.Path + "?[REDACTED]"
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

func requestLevel(status int) slog.Level {
	if status >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelInfo
}
