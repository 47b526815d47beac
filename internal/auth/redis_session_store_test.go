package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisSessionStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisSessionStore(rdb, "test"), mr
}

func TestRedisSessionStore_CreateFind(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour).Truncate(time.Microsecond)
	require.NoError(t, store.Create(ctx, &Session{ID: "s1", AccountID: "a1", ExpiresAt: exp, UserAgent: "curl", IP: "10.0.0.1"}))

	got, err := store.Find(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccountID)
	assert.True(t, got.ExpiresAt.Equal(exp))
	assert.Nil(t, got.RevokedAt)
	assert.Equal(t, "curl", got.UserAgent)

	assert.True(t, mr.TTL("test:session:s1") > 0)

	_, err = store.Find(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisSessionStore_RevokeOnce(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Session{ID: "s1", AccountID: "a1", ExpiresAt: time.Now().Add(time.Hour)}))

	ok, err := store.Revoke(ctx, "s1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Revoke(ctx, "s1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second revoke must report not active")

	got, err := store.Find(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.False(t, got.Active(time.Now()))

	ok, err = store.Revoke(ctx, "unknown", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionStore_RevokeAll(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.Create(ctx, &Session{ID: "s1", AccountID: "a1", ExpiresAt: exp}))
	require.NoError(t, store.Create(ctx, &Session{ID: "s2", AccountID: "a1", ExpiresAt: exp}))
	require.NoError(t, store.Create(ctx, &Session{ID: "s3", AccountID: "a2", ExpiresAt: exp}))

	_, err := store.Revoke(ctx, "s2", time.Now())
	require.NoError(t, err)

	n, err := store.RevokeAll(ctx, "a1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	other, err := store.Find(ctx, "s3")
	require.NoError(t, err)
	assert.Nil(t, other.RevokedAt)
}

func TestRedisSessionStore_ExpiredOnCreate(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	err := store.Create(context.Background(), &Session{ID: "s1", AccountID: "a1", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

func TestRedisSessionStore_KeyExpires(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Session{ID: "s1", AccountID: "a1", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Find(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
