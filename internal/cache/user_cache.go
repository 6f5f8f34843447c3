package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-contacts-api/internal/model"
)

const (
	DefaultUserTTL = 900 * time.Second

	userKeyPrefix    = "user:"
	userEntryVersion = 1
)

// ErrCorruptEntry is returned for payloads that cannot be decoded or carry
// an unknown version. Callers treat it as a miss.
var ErrCorruptEntry = errors.New("cache: corrupt user entry")

// userEntry is the cached identity. Only the fields a request needs are
// stored so the row schema can change without touching cached data.
type userEntry struct {
	Version   int        `json:"v"`
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Avatar    *string    `json:"avatar,omitempty"`
	Role      model.Role `json:"role"`
	Confirmed bool       `json:"confirmed"`
}

// UserCache maps an email to the last resolved identity for a fixed TTL.
type UserCache struct {
	client Client
	ttl    time.Duration
}

func NewUserCache(client Client, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &UserCache{client: client, ttl: ttl}
}

func UserKey(email string) string {
	return userKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Get returns found=false on a miss. A decode failure returns ErrCorruptEntry.
func (c *UserCache) Get(ctx context.Context, email string) (model.User, bool, error) {
	raw, err := c.client.Get(ctx, UserKey(email))
	if errors.Is(err, ErrNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}

	user, err := decodeUser(raw)
	if err != nil {
		return model.User{}, false, err
	}

	return user, true, nil
}

// Put overwrites any entry for the user's email and restarts its TTL.
func (c *UserCache) Put(ctx context.Context, user model.User) error {
	raw, err := encodeUser(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, UserKey(user.Email), raw, c.ttl)
}

func (c *UserCache) Invalidate(ctx context.Context, email string) error {
	return c.client.Delete(ctx, UserKey(email))
}

func encodeUser(user model.User) ([]byte, error) {
	raw, err := json.Marshal(userEntry{
		Version:   userEntryVersion,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Role:      user.Role,
		Confirmed: user.Confirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode user entry: %w", err)
	}
	return raw, nil
}

func decodeUser(raw []byte) (model.User, error) {
	var entry userEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}

	if entry.Version != userEntryVersion {
		return model.User{}, fmt.Errorf("%w: version %d", ErrCorruptEntry, entry.Version)
	}

	if entry.Email == "" {
		return model.User{}, fmt.Errorf("%w: missing email", ErrCorruptEntry)
	}

	return model.User{
		ID:        entry.ID,
		Username:  entry.Username,
		Email:     entry.Email,
		Avatar:    entry.Avatar,
		Role:      entry.Role,
		Confirmed: entry.Confirmed,
	}, nil
}
