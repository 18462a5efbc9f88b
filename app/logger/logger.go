package logger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// minSecretLen is the shortest path segment treated as a bearer secret.
// Verification and reset tokens are 64 hex characters.
const minSecretLen = 32

// StructuredLogger logs each request twice, on arrival and on completion.
// Paths never carry link tokens: the completion line uses the matched route
// pattern, the arrival line a redacted path.
func StructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Captures the status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// RequestID must run before this
			reqID := middleware.GetReqID(r.Context())

			requestLogger := logger.With(
				slog.String("req_id", reqID),
				slog.String("method", r.Method),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("proto", r.Proto),
			)

			requestLogger.InfoContext(r.Context(), "Request started",
				slog.String("path", RedactPath(r.URL.Path)))

			next.ServeHTTP(ww, r)

			requestLogger.InfoContext(r.Context(), "Request completed",
				slog.String("path", RoutePath(r)),
				slog.Int("status", ww.Status()),
				slog.Int("bytes_written", ww.BytesWritten()),
				slog.Duration("latency", time.Since(start)),
				slog.String("latency_human", time.Since(start).String()),
			)
		})
	}
}

// RoutePath returns the chi route pattern that served r, or the redacted
// request path when nothing matched.
func RoutePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return RedactPath(r.URL.Path)
}

// RedactPath replaces every hex segment long enough to be a token with
// "{token}".
func RedactPath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if len(s) >= minSecretLen && isHex(s) {
			segments[i] = "{token}"
		}
	}
	return strings.Join(segments, "/")
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
