package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Timeout puts a deadline on the request context. Repositories and the
// resolver observe it; a handler that returns after the deadline without
// answering gets a 504 REQUEST_TIMEOUT envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &deadlineWriter{ResponseWriter: w}
			next.ServeHTTP(tw, r.WithContext(ctx))

			if tw.wroteHeader || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			slog.Warn("request deadline exceeded", "method", r.Method, "path", r.URL.Path, "timeout", timeout)
			writeJSONError(w, http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timed out")
		})
	}
}

type deadlineWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (tw *deadlineWriter) WriteHeader(statusCode int) {
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *deadlineWriter) Write(b []byte) (int, error) {
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

func (tw *deadlineWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
