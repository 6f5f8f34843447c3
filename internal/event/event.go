package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserSignedUp    Type = "user.signed_up"
	TypeUserLoggedIn    Type = "user.logged_in"
	TypeUserLoginFailed Type = "user.login_failed"
	TypeUserLoggedOut   Type = "user.logged_out"
	TypeTokenRefreshed  Type = "token.refreshed"
	TypeTokenReuse      Type = "token.reuse_detected"
	TypeEmailConfirmed  Type = "user.email_confirmed"
	TypeEmailOpened     Type = "user.email_opened"
	TypeAvatarUpdated   Type = "user.avatar_updated"
	TypeRoleChanged     Type = "user.role_changed"
	TypeContactCreated  Type = "contact.created"
	TypeContactUpdated  Type = "contact.updated"
	TypeContactDeleted  Type = "contact.deleted"
	TypeAccessForbidden Type = "access.forbidden"
)

type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   int64          `json:"actor_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Failed    bool           `json:"failed,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func New(t Type, actorID int64, actor string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Actor:     actor,
	}
}

// WithError marks the event as a failed attempt.
func (e Event) WithError(err error) Event {
	e.Failed = true
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

type ipContextKey struct{}

// WithClientIP records the caller address so events published further down
// the request carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipContextKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipContextKey{}).(string)
	return ip
}
