package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"go-contacts-api/internal/cache"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/model"
)

// sessionLoadTimeout bounds a collapsed database fetch. The fetch is shared by
// every waiting request, so it is detached from any single caller's context.
const sessionLoadTimeout = 5 * time.Second

type UserFinder interface {
	// FindByEmail returns model.ErrUserNotFound when no row matches.
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

// SessionResolver turns a bearer access token into the caller's identity,
// reading through the user cache.
type SessionResolver struct {
	codec   *TokenCodec
	users   *cache.UserCache
	finder  UserFinder
	metrics *metrics.Metrics
	group   singleflight.Group
}

func NewSessionResolver(codec *TokenCodec, users *cache.UserCache, finder UserFinder, m *metrics.Metrics) *SessionResolver {
	return &SessionResolver{
		codec:   codec,
		users:   users,
		finder:  finder,
		metrics: m,
	}
}

// Resolve fails with model.ErrUnauthorized wrapping the token or subject
// error. Persistence failures are returned as they are.
func (r *SessionResolver) Resolve(ctx context.Context, bearer string) (model.User, error) {
	email, err := r.codec.Parse(bearer, ScopeAccess)
	if err != nil {
		r.metrics.AuthOutcome("resolve", "rejected")
		return model.User{}, fmt.Errorf("%w: %w", model.ErrUnauthorized, err)
	}

	user, found, err := r.users.Get(ctx, email)
	switch {
	case err == nil && found:
		r.metrics.CacheLookup(metrics.CacheHit)
		return user, nil
	case errors.Is(err, cache.ErrCorruptEntry):
		r.metrics.CacheLookup(metrics.CacheCorrupt)
		slog.Warn("discarding unreadable user cache entry", "email", email, "error", err)
	case err != nil:
		// Cache outages fall through to the database.
		r.metrics.CacheLookup(metrics.CacheError)
		slog.Warn("user cache unavailable", "email", email, "error", err)
	default:
		r.metrics.CacheLookup(metrics.CacheMiss)
	}

	v, err, _ := r.group.Do(cache.UserKey(email), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionLoadTimeout)
		defer cancel()
		return r.load(loadCtx, email)
	})
	if err != nil {
		if errors.Is(err, model.ErrUnknownSubject) {
			r.metrics.AuthOutcome("resolve", "rejected")
			return model.User{}, fmt.Errorf("%w: %w", model.ErrUnauthorized, err)
		}
		return model.User{}, err
	}

	return v.(model.User), nil
}

func (r *SessionResolver) load(ctx context.Context, email string) (model.User, error) {
	user, err := r.finder.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrUnknownSubject, email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("resolve session user: %w", err)
	}

	identity := user.Identity()
	if err := r.users.Put(ctx, identity); err != nil {
		slog.Warn("failed to cache user", "email", email, "error", err)
	}

	return identity, nil
}
