package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStoreTest creates a miniredis instance and returns the store and cleanup function
func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedisStore(RedisOptions{URL: "redis://" + mr.Addr(), PoolSize: 5, MaxRetries: 1})
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis store: %v", err)
	}

	cleanup := func() {
		store.Close()
		mr.Close()
	}
	return store, mr, cleanup
}

func TestNewRedisStore(t *testing.T) {
	t.Run("by address", func(t *testing.T) {
		mr := miniredis.RunT(t)

		store, err := NewRedisStore(RedisOptions{Addr: mr.Addr(), KeyPrefix: "custom:"})
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, "custom:", store.prefix)
		assert.NoError(t, store.Ping(context.Background()))
	})

	t.Run("missing address", func(t *testing.T) {
		_, err := NewRedisStore(RedisOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no Redis address provided")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisStore(RedisOptions{URL: "invalid://url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid redis URL")
	})

	t.Run("connection failure", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		_, err = NewRedisStore(RedisOptions{Addr: addr})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func TestRedisStore_GetSet(t *testing.T) {
	store, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &Entry{Proof: "$2a$04$hash", Teams: []string{"foo", "bar"}, ExpiresAt: expires}
	require.NoError(t, store.Set(ctx, "alice", entry, time.Hour))

	assert.True(t, mr.Exists(DefaultKeyPrefix+"alice"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultKeyPrefix+"alice"))

	got, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Proof, got.Proof)
	assert.Equal(t, entry.Teams, got.Teams)
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))

	raw, err := mr.Get(DefaultKeyPrefix + "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"$2a$04$hash","teams":["foo","bar"],"expires_at":"2030-01-01T00:00:00Z"}`, raw)

	assert.ErrorIs(t, store.Set(ctx, "", entry, time.Hour), ErrInvalidCacheKey)
}

func TestRedisStore_ServerSideExpiry(t *testing.T) {
	store, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "alice", &Entry{Teams: []string{"foo"}}, time.Minute))
	mr.FastForward(time.Minute + time.Second)

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	store, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	require.NoError(t, mr.Set(DefaultKeyPrefix+"alice", "{not json"))

	got, err := store.Get(context.Background(), "alice")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrCorruptEntry)
	assert.False(t, mr.Exists(DefaultKeyPrefix+"alice"), "corrupt data should be deleted")
}

func TestRedisStore_DeleteAndClear(t *testing.T) {
	store, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, user, &Entry{}, time.Hour))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, store.Delete(ctx, "a"))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"a"))

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"b"))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"c"))
	assert.True(t, mr.Exists("unrelated"), "keys outside the prefix must survive Clear")
}

func TestRedisStore_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	store, err := NewRedisStore(RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	mr.Close()

	_, err = store.Get(context.Background(), "alice")
	assert.Error(t, err)
	assert.Error(t, store.Set(context.Background(), "alice", &Entry{}, time.Minute))
}

func TestNewRedisStoreFromClient_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "")
	defer store.Close()

	assert.Equal(t, DefaultKeyPrefix, store.prefix)
}
