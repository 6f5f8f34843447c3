package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-contacts-api/internal/model"
)

const (
	requestIDHeader = "X-Request-ID"
	// maxLoggedErrorBody caps how much of an error envelope is kept for logging.
	maxLoggedErrorBody = 4 << 10
)

// requestLog collects fields that are only known deeper in the chain, such
// as the caller identity resolved by RequireAuth.
type requestLog struct {
	userID int64
	email  string
}

type requestLogKey struct{}

// annotateUser records the authenticated caller on the access log line.
func annotateUser(ctx context.Context, user model.User) {
	if l, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		l.userID = user.ID
		l.email = user.Email
	}
}

// Logging writes one access log line per request. Error envelopes are parsed
// so the log carries the API error code next to the status.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		entry := &requestLog{}
		r = r.WithContext(context.WithValue(r.Context(), requestLogKey{}, entry))

		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", extractClientIP(r),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			attrs = append(attrs, "route", rctx.RoutePattern())
		}
		if entry.userID != 0 {
			attrs = append(attrs, "user_id", entry.userID, "user_email", entry.email)
		}
		if wrapped.status >= 400 {
			attrs = append(attrs, errorAttrs(wrapped.body.Bytes())...)
		}

		switch {
		case wrapped.status >= 500:
			slog.Error("request", attrs...)
		case wrapped.status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

func errorAttrs(body []byte) []any {
	var parsed model.APIResponse
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil || parsed.Error == nil {
		return nil
	}

	attrs := []any{"error_code", parsed.Error.Code, "error_message", parsed.Error.Message}
	if parsed.Error.Details != "" {
		attrs = append(attrs, "error_details", parsed.Error.Details)
	}
	return attrs
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status >= 400 && rw.body.Len() < maxLoggedErrorBody {
		rw.body.Write(b[:min(len(b), maxLoggedErrorBody-rw.body.Len())])
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
