package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryClient keeps entries in process. It is not shared between
// instances, so it only suits single-node development.
type MemoryClient struct {
	store  *gocache.Cache
	prefix string
}

func NewMemory(prefix string) *MemoryClient {
	return &MemoryClient{
		store:  gocache.New(gocache.NoExpiration, time.Minute),
		prefix: prefix,
	}
}

func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := c.store.Get(prefixed(c.prefix, key))
	if !ok {
		return nil, ErrNotFound
	}

	b, ok := val.([]byte)
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(prefixed(c.prefix, key), stored, ttl)
	return nil
}

func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.store.Delete(prefixed(c.prefix, key))
	return nil
}

func (c *MemoryClient) Ping(context.Context) error {
	return nil
}

func (c *MemoryClient) Close() error {
	c.store.Flush()
	return nil
}
