package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-contacts-api/internal/model"
)

type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			slog.Warn("health check failed", "check", c.Name, "error", err)
			results[c.Name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "up"
	}

	writeSuccess(w, status, model.HealthResponse{Status: http.StatusText(status), Checks: results}, nil)
}

func Root(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "CONTACT API"}, nil)
}
