package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/model"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	created, err := repo.Create(ctx, model.User{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, model.RoleUser, created.Role)

	_, err = repo.Create(ctx, model.User{Username: "alice2", Email: "A@X.com"})
	assert.ErrorIs(t, err, model.ErrUserAlreadyExists)

	_, err = repo.FindByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	require.NoError(t, repo.ConfirmEmail(ctx, "a@x.com"))
	found, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, found.Confirmed)

	updated, err := repo.UpdateRole(ctx, created.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)

	withAvatar, err := repo.UpdateAvatar(ctx, "a@x.com", "/static/avatars/alice.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/static/avatars/alice.jpg", withAvatar.AvatarURL())
}

func TestMemoryUserRepositoryRotateRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	u, err := repo.Create(ctx, model.User{Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)

	ok, err := repo.RotateRefreshToken(ctx, u.ID, "old", "new")
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored yet")

	old := "old"
	require.NoError(t, repo.SetRefreshToken(ctx, u.ID, &old))

	ok, err = repo.RotateRefreshToken(ctx, u.ID, "old", "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RotateRefreshToken(ctx, u.ID, "old", "newer")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetRefreshToken(ctx, u.ID, nil))
	found, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, found.RefreshToken)
}

func TestMemoryContactRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryContactRepository()

	first, err := repo.Create(ctx, model.Contact{UserID: 1, Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, model.Contact{UserID: 1, Name: "Bobby", Email: "BOB@x.com"})
	assert.ErrorIs(t, err, model.ErrContactAlreadyExists)

	_, err = repo.Create(ctx, model.Contact{UserID: 2, Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)

	own, err := repo.List(ctx, 1, model.ContactPage{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := repo.List(ctx, 0, model.ContactPage{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	page, err := repo.List(ctx, 0, model.ContactPage{Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = repo.Get(ctx, 2, first.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)

	first.Name = "Robert"
	updated, err := repo.Update(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)

	deleted, err := repo.Delete(ctx, 1, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deleted.ID)

	_, err = repo.Delete(ctx, 1, first.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)
}

func TestMemoryAuditRepositoryPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository()

	for _, action := range []string{"signup", "login", "login"} {
		require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: action, Status: "success"}))
	}

	items, meta, err := repo.Query(ctx, model.AuditQuery{Action: "login", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)

	items, _, err = repo.Query(ctx, model.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "signup", items[2].Action)
}
