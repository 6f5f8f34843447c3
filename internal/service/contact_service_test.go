package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/event"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/repository"
	"go-contacts-api/pkg/apierror"
)

func peter() model.ContactRequest {
	return model.ContactRequest{
		Name:     "Peter",
		Surname:  "Parker",
		Email:    "peter@dailybugle.com",
		Phone:    "+380501234567",
		Birthday: "2001-08-10",
		City:     "New York",
		Notes:    "friendly neighbour",
	}
}

func TestParseContactPage(t *testing.T) {
	page, err := ParseContactPage("", "")
	require.NoError(t, err)
	assert.Equal(t, model.ContactPage{Limit: 10, Offset: 0}, page)

	page, err = ParseContactPage("500", "200")
	require.NoError(t, err)
	assert.Equal(t, model.ContactPage{Limit: 500, Offset: 200}, page)

	bad := map[string][2]string{
		"limit too small": {"9", ""},
		"limit too large": {"501", ""},
		"limit not int":   {"ten", ""},
		"negative offset": {"", "-1"},
		"offset too big":  {"", "201"},
	}
	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContactPage(in[0], in[1])

			var apiErr *apierror.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
		})
	}
}

func TestContactServiceCRUD(t *testing.T) {
	svc := NewContactService(repository.NewMemoryContactRepository(), event.NewBus())
	ctx := context.Background()
	owner := model.User{ID: 1, Email: "a@x.com"}
	other := model.User{ID: 2, Email: "b@x.com"}

	created, err := svc.Create(ctx, owner, peter())
	require.NoError(t, err)
	assert.Equal(t, owner.ID, created.UserID)
	assert.NotZero(t, created.ID)

	_, err = svc.Create(ctx, owner, peter())
	assert.ErrorIs(t, err, model.ErrContactAlreadyExists)

	// Another user may keep the same address.
	_, err = svc.Create(ctx, other, peter())
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Parker", got.Surname)

	_, err = svc.Get(ctx, other, created.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)

	req := peter()
	req.City = "Queens"
	updated, err := svc.Update(ctx, owner, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Queens", updated.City)

	_, err = svc.Update(ctx, other, created.ID, req)
	assert.ErrorIs(t, err, model.ErrContactNotFound)

	own, err := svc.List(ctx, owner, model.ContactPage{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := svc.ListAll(ctx, model.ContactPage{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	deleted, err := svc.Delete(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = svc.Delete(ctx, owner, created.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)
}

func TestContactServiceValidates(t *testing.T) {
	svc := NewContactService(repository.NewMemoryContactRepository(), nil)

	req := peter()
	req.Birthday = "10.08.2001"
	_, err := svc.Create(context.Background(), model.User{ID: 1}, req)

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "birthday", apiErr.Details)
}

func TestContactServicePublishesEvents(t *testing.T) {
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := NewContactService(repository.NewMemoryContactRepository(), bus)
	created, err := svc.Create(context.Background(), model.User{ID: 1, Email: "a@x.com"}, peter())
	require.NoError(t, err)

	e := <-events
	assert.Equal(t, event.TypeContactCreated, e.Type)
	assert.Equal(t, created.ID, e.Payload["contact_id"])
}
