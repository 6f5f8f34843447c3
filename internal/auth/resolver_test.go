package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/cache"
	"go-contacts-api/internal/model"
)

type countingFinder struct {
	mu      sync.Mutex
	users   map[string]model.User
	err     error
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newCountingFinder(users ...model.User) *countingFinder {
	f := &countingFinder{users: map[string]model.User{}}
	for _, u := range users {
		f.users[u.Email] = u
	}
	return f
}

func (f *countingFinder) FindByEmail(ctx context.Context, email string) (model.User, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return model.User{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return model.User{}, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *countingFinder) setRole(email string, role model.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[email]
	u.Role = role
	f.users[email] = u
}

func newResolverFixture(t *testing.T, finder UserFinder) (*SessionResolver, *TokenCodec, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codec, err := NewTokenCodec("test-secret", "HS256", time.Hour, 24*time.Hour, 24*time.Hour)
	require.NoError(t, err)

	users := cache.NewUserCache(cache.NewRedisFromClient(rdb, ""), cache.DefaultUserTTL)
	return NewSessionResolver(codec, users, finder, nil), codec, mr
}

func alice() model.User {
	return model.User{ID: 1, Username: "alice", Email: "a@x.com", PasswordHash: "hash", Role: model.RoleUser, Confirmed: true}
}

func TestResolveMissThenHit(t *testing.T) {
	finder := newCountingFinder(alice())
	resolver, codec, mr := newResolverFixture(t, finder)

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	user, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, int32(1), finder.calls.Load())
	assert.True(t, mr.Exists("user:a@x.com"))

	again, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user, again)
	assert.Equal(t, int32(1), finder.calls.Load())
}

func TestResolveRejectsBadTokens(t *testing.T) {
	finder := newCountingFinder(alice())
	resolver, codec, _ := newResolverFixture(t, finder)

	refresh, err := codec.IssueRefresh("a@x.com")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), refresh)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrScopeMismatch)

	_, err = resolver.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	assert.Equal(t, int32(0), finder.calls.Load())
}

func TestResolveUnknownSubject(t *testing.T) {
	finder := newCountingFinder()
	resolver, codec, mr := newResolverFixture(t, finder)

	token, err := codec.IssueAccess("ghost@x.com")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrUnknownSubject)
	assert.False(t, mr.Exists("user:ghost@x.com"))
}

func TestResolvePropagatesPersistenceFailure(t *testing.T) {
	finder := newCountingFinder(alice())
	finder.err = errors.New("connection reset")
	resolver, codec, _ := newResolverFixture(t, finder)

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, finder.err)
}

func TestResolveFailsOpenWhenCacheIsDown(t *testing.T) {
	finder := newCountingFinder(alice())
	resolver, codec, mr := newResolverFixture(t, finder)
	mr.Close()

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	user, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int32(1), finder.calls.Load())
}

func TestResolveTreatsCorruptEntryAsMiss(t *testing.T) {
	finder := newCountingFinder(alice())
	resolver, codec, mr := newResolverFixture(t, finder)
	require.NoError(t, mr.Set("user:a@x.com", `{"v":99}`))

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	user, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, int32(1), finder.calls.Load())
}

func TestResolveServesStaleIdentityUntilTTL(t *testing.T) {
	finder := newCountingFinder(alice())
	resolver, codec, mr := newResolverFixture(t, finder)

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	require.NoError(t, err)

	// A change made behind the service's back is invisible until expiry.
	finder.setRole("a@x.com", model.RoleAdmin)

	mr.FastForward(cache.DefaultUserTTL - time.Second)
	user, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)

	mr.FastForward(time.Second)
	user, err = resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.Equal(t, int32(2), finder.calls.Load())
}

func TestResolveCollapsesConcurrentMisses(t *testing.T) {
	finder := newCountingFinder(alice())
	finder.entered = make(chan struct{}, 16)
	finder.release = make(chan struct{})
	resolver, codec, _ := newResolverFixture(t, finder)

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(context.Background(), token)
			errs <- err
		}()
	}

	<-finder.entered
	time.Sleep(50 * time.Millisecond)
	close(finder.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), finder.calls.Load())
}

func TestResolveSharedLoadOutlivesCancelledCaller(t *testing.T) {
	finder := newCountingFinder(alice())
	finder.entered = make(chan struct{}, 4)
	finder.release = make(chan struct{})
	resolver, codec, _ := newResolverFixture(t, finder)

	token, err := codec.IssueAccess("a@x.com")
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(firstCtx, token)
		firstErr <- err
	}()
	<-finder.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(context.Background(), token)
		secondErr <- err
	}()

	// Let the second request join the in-flight fetch, then drop the first.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(finder.release)

	assert.NoError(t, <-secondErr)
	assert.NoError(t, <-firstErr)
	assert.Equal(t, int32(1), finder.calls.Load())
}
