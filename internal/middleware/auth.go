package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/event"
	"go-contacts-api/internal/model"
)

type sessionResolver interface {
	Resolve(ctx context.Context, bearer string) (model.User, error)
}

type contextKey string

const userContextKey contextKey = "auth_user"

// RequireAuth resolves the bearer access token once per request and stores
// the caller's identity in the request context.
func RequireAuth(resolver sessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if errors.Is(err, model.ErrUnauthorized) {
				writeUnauthorized(w, "Could not validate credentials")
				return
			}
			if err != nil {
				slog.Error("session resolution failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
				return
			}

			annotateUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRoles must run after RequireAuth. Denials are published on bus.
func RequireRoles(gate auth.RoleGate, bus event.Bus) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			if err := gate.Check(user); err != nil {
				if bus != nil {
					e := event.New(event.TypeAccessForbidden, user.ID, user.Email, map[string]any{
						"resource": r.Method + " " + r.URL.Path,
						"role":     string(user.Role),
					}).WithError(err)
					e.IP = event.ClientIP(r.Context())
					bus.Publish(e)
				}
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "Operation forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userContextKey).(model.User)
	return user, ok
}

// BearerToken extracts the credentials of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}
