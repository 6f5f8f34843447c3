package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS lets browser clients call the API from the configured origins. Bearer
// tokens travel in the Authorization header, so credentials mode stays off.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(corsOptions(origins)).Handler
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: normalizeOrigins(origins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		// WWW-Authenticate carries the bearer challenge on 401, Retry-After the
		// rate-limit backoff.
		ExposedHeaders: []string{requestIDHeader, "WWW-Authenticate", "Retry-After"},
		MaxAge:         3600,
	}
}

// normalizeOrigins lowercases entries and drops trailing slashes, which
// browsers never send in the Origin header.
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
