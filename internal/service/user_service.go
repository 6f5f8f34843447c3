package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go-contacts-api/internal/avatar"
	"go-contacts-api/internal/cache"
	"go-contacts-api/internal/event"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/storage"
	"go-contacts-api/pkg/apierror"
)

type UserService struct {
	users     UserStore
	cache     *cache.UserCache
	store     storage.ObjectStore
	processor *avatar.Processor
	bus       event.Bus
	now       func() time.Time
}

func NewUserService(users UserStore, userCache *cache.UserCache, store storage.ObjectStore, processor *avatar.Processor, bus event.Bus) *UserService {
	return &UserService{
		users:     users,
		cache:     userCache,
		store:     store,
		processor: processor,
		bus:       bus,
		now:       time.Now,
	}
}

// UpdateAvatar replaces the caller's avatar with a square JPEG rendition of
// body and returns the updated identity.
func (s *UserService) UpdateAvatar(ctx context.Context, user model.User, body io.Reader) (model.User, error) {
	data, err := s.processor.Process(body)
	if err != nil {
		return model.User{}, err
	}

	key := AvatarKey(user.ID)
	location, err := s.store.Put(ctx, key, avatar.ContentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return model.User{}, fmt.Errorf("store avatar: %w", err)
	}

	updated, err := s.users.UpdateAvatar(ctx, user.Email, withVersion(location, s.now()))
	if err != nil {
		return model.User{}, err
	}
	s.invalidate(ctx, updated.Email)

	s.publish(ctx, event.New(event.TypeAvatarUpdated, updated.ID, updated.Email, map[string]any{
		"resource": key,
	}))

	return updated.Identity(), nil
}

// UpdateRole assigns rawRole to the user with the given id on behalf of actor.
func (s *UserService) UpdateRole(ctx context.Context, actor model.User, id int64, rawRole string) (model.User, error) {
	role, ok := model.ParseRole(rawRole)
	if !ok {
		return model.User{}, apierror.Validation("role", "must be one of admin, moderator, user")
	}

	updated, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return model.User{}, err
	}
	s.invalidate(ctx, updated.Email)

	s.publish(ctx, event.New(event.TypeRoleChanged, actor.ID, actor.Email, map[string]any{
		"resource": updated.Email,
		"role":     string(role),
	}))

	return updated.Identity(), nil
}

func (s *UserService) invalidate(ctx context.Context, emailAddr string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, emailAddr); err != nil {
		slog.Warn("failed to invalidate cached user", "email", emailAddr, "error", err)
	}
}

func (s *UserService) publish(ctx context.Context, e event.Event) {
	if s.bus == nil {
		return
	}
	e.IP = event.ClientIP(ctx)
	s.bus.Publish(e)
}

// AvatarKey is the object key of a user's avatar. Usernames are neither
// unique nor path safe, so the key is derived from the id.
func AvatarKey(userID int64) string {
	return "avatars/" + strconv.FormatInt(userID, 10) + ".jpg"
}

// withVersion busts client caches when the object key is reused.
func withVersion(location string, at time.Time) string {
	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	return location + sep + "v=" + strconv.FormatInt(at.Unix(), 10)
}
