// Package cache holds the key/value clients behind the user cache. Redis is
// used in production; the in-process client serves development and tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

type Client interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Driver   string
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

func prefixed(prefix string, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
