package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	bus.Publish(New(TypeUserSignedUp, 1, "a@x.com", map[string]any{"username": "alice"}))

	for _, ch := range []<-chan Event{first, second} {
		e := <-ch
		assert.Equal(t, TypeUserSignedUp, e.Type)
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "alice", e.Payload["username"])
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewBusWithBuffer(1)
	ch, unsub := bus.Subscribe()
	defer unsub()

	bus.Publish(New(TypeUserLoggedIn, 1, "a@x.com", nil))
	bus.Publish(New(TypeUserLoggedOut, 1, "a@x.com", nil))

	e := <-ch
	assert.Equal(t, TypeUserLoggedIn, e.Type)
	assert.Empty(t, ch)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe()
	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(New(TypeUserLoggedIn, 0, "", nil)) })
}

func TestWithErrorMarksFailure(t *testing.T) {
	e := New(TypeUserLoginFailed, 0, "a@x.com", nil).WithError(errors.New("invalid password"))
	require.True(t, e.Failed)
	assert.Equal(t, "invalid password", e.Error)
}

func TestClientIPRoundTrip(t *testing.T) {
	ctx := WithClientIP(t.Context(), "203.0.113.9")

	assert.Equal(t, "203.0.113.9", ClientIP(ctx))
	assert.Empty(t, ClientIP(t.Context()))
}
