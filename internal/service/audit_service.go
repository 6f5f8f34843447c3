package service

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-contacts-api/internal/event"
	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

const auditWriteTimeout = 5 * time.Second

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService persists bus events as audit entries and pages them back.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Start consumes bus events until the returned stop func is called. stop
// waits for the consumer to drain.
func (s *AuditService) Start(bus event.Bus) func() {
	events, unsubscribe := bus.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range events {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			if err := s.Record(ctx, e); err != nil {
				slog.Error("failed to write audit entry", "type", e.Type, "error", err)
			}
			cancel()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			wg.Wait()
		})
	}
}

func (s *AuditService) Record(ctx context.Context, e event.Event) error {
	return s.store.Log(ctx, entryFromEvent(e))
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Status != "" {
		status := strings.ToLower(strings.TrimSpace(query.Status))
		if status != "success" && status != "failed" {
			return nil, model.Meta{}, apierror.New("BAD_REQUEST", "status must be success or failed", query.Status, http.StatusBadRequest)
		}
		query.Status = status
	}

	return s.store.Query(ctx, query)
}

func entryFromEvent(e event.Event) model.AuditEntry {
	entry := model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor: model.AuditActor{
			UserID: e.ActorID,
			Email:  e.Actor,
			IP:     e.IP,
		},
		Status: "success",
		Error:  e.Error,
	}
	if e.Failed {
		entry.Status = "failed"
	}

	if len(e.Payload) > 0 {
		details := maps.Clone(e.Payload)
		if resource, ok := details["resource"].(string); ok {
			entry.Resource = resource
			delete(details, "resource")
		}
		if len(details) > 0 {
			entry.Details = details
		}
	}

	return entry
}
