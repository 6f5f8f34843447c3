package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/avatar"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/storage"
	"go-contacts-api/pkg/apierror"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 255, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newUserService(t *testing.T, store storage.ObjectStore) (*UserService, *authFixture) {
	t.Helper()

	f := newAuthFixture(t)
	svc := NewUserService(f.users, f.cache, store, avatar.NewProcessor(250), f.bus)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc, f
}

func TestUpdateAvatar(t *testing.T) {
	store := new(storage.MockObjectStore)
	svc, f := newUserService(t, store)
	user := f.signup(t, "alice", "alice@ex.com", "123456")
	require.NoError(t, f.cache.Put(context.Background(), user.Identity()))

	key := AvatarKey(user.ID)
	store.On("Put", mock.Anything, key, "image/jpeg", mock.AnythingOfType("int64")).
		Return("/static/"+key, nil).Once()

	updated, err := svc.UpdateAvatar(context.Background(), user.Identity(), bytes.NewReader(pngImage(t, 400, 300)))
	require.NoError(t, err)
	assert.Equal(t, "/static/"+key+"?v=1700000000", updated.AvatarURL())
	assert.Empty(t, updated.PasswordHash)
	assert.False(t, f.mr.Exists("user:alice@ex.com"))

	stored, err := f.users.FindByEmail(context.Background(), "alice@ex.com")
	require.NoError(t, err)
	assert.Equal(t, updated.AvatarURL(), stored.AvatarURL())

	store.AssertExpectations(t)
}

func TestUpdateAvatarRejectsNonImages(t *testing.T) {
	store := new(storage.MockObjectStore)
	svc, f := newUserService(t, store)
	user := f.signup(t, "alice", "alice@ex.com", "123456")

	_, err := svc.UpdateAvatar(context.Background(), user, strings.NewReader("%PDF-1.7 not an image"))

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnsupportedMediaType, apiErr.HTTPStatus)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAvatarStoreFailure(t *testing.T) {
	store := new(storage.MockObjectStore)
	svc, f := newUserService(t, store)
	user := f.signup(t, "alice", "alice@ex.com", "123456")

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))

	_, err := svc.UpdateAvatar(context.Background(), user, bytes.NewReader(pngImage(t, 50, 50)))
	assert.ErrorContains(t, err, "bucket gone")

	stored, err := f.users.FindByEmail(context.Background(), "alice@ex.com")
	require.NoError(t, err)
	assert.Equal(t, user.AvatarURL(), stored.AvatarURL())
}

func TestUpdateRole(t *testing.T) {
	svc, f := newUserService(t, new(storage.MockObjectStore))
	admin := model.User{ID: 99, Email: "root@ex.com", Role: model.RoleAdmin}
	user := f.signup(t, "alice", "alice@ex.com", "123456")
	require.NoError(t, f.cache.Put(context.Background(), user.Identity()))

	_, err := svc.UpdateRole(context.Background(), admin, user.ID, "superuser")
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)

	_, err = svc.UpdateRole(context.Background(), admin, 12345, "moderator")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	updated, err := svc.UpdateRole(context.Background(), admin, user.ID, "Moderator")
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, updated.Role)
	assert.False(t, f.mr.Exists("user:alice@ex.com"))
}

func TestAvatarKey(t *testing.T) {
	assert.Equal(t, "avatars/7.jpg", AvatarKey(7))
	assert.NotEqual(t, AvatarKey(1), AvatarKey(2))
}

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for x := 0; x < 60; x++ {
		for y := 0; y < 60; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUpdateAvatarSameUsernameKeepsSeparateFiles(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocal(root, "/static")
	require.NoError(t, err)
	svc, f := newUserService(t, store)

	first := f.signup(t, "ironman", "tony@ex.com", "123456")
	second := f.signup(t, "ironman", "impostor@ex.com", "123456")

	red, err := svc.UpdateAvatar(context.Background(), first.Identity(), bytes.NewReader(solidPNG(t, color.RGBA{R: 255, A: 255})))
	require.NoError(t, err)
	blue, err := svc.UpdateAvatar(context.Background(), second.Identity(), bytes.NewReader(solidPNG(t, color.RGBA{B: 255, A: 255})))
	require.NoError(t, err)
	assert.NotEqual(t, red.AvatarURL(), blue.AvatarURL())

	raw, err := os.ReadFile(filepath.Join(root, "avatars", strconv.FormatInt(first.ID, 10)+".jpg"))
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	r, _, b, _ := img.At(30, 30).RGBA()
	assert.Greater(t, r, b, "first user's avatar was overwritten")
}

func TestWithVersion(t *testing.T) {
	at := time.Unix(42, 0)
	assert.Equal(t, "/static/a.jpg?v=42", withVersion("/static/a.jpg", at))
	assert.Equal(t, "https://cdn/a.jpg?x=1&v=42", withVersion("https://cdn/a.jpg?x=1", at))
}
