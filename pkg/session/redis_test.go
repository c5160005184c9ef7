package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindrush/portal/pkg/auth"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreWithClient(client), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	record := NewRecord(oidcPrincipal(), DefaultTTL, time.Now())
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	p, ok := got.Principal.(*auth.OIDCPrincipal)
	require.True(t, ok)
	assert.Equal(t, "sub-1", p.Claims.Subject)
	assert.Equal(t, "at", p.AccessToken)
	assert.Equal(t, "rt", p.RefreshToken)
}

func TestRedisStore_DevPrincipalRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	record := NewRecord(&auth.DevPrincipal{ID: "u1", Email: "d@e.com", FirstName: "Dev"}, DefaultTTL, time.Now())
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	p, ok := got.Principal.(*auth.DevPrincipal)
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Dev", p.FirstName)
}

func TestRedisStore_UnknownID(t *testing.T) {
	store, _ := newTestRedisStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_KeyTTLMatchesRecordExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	record := NewRecord(&auth.DevPrincipal{ID: "u1"}, DefaultTTL, time.Now())
	require.NoError(t, store.Put(ctx, record))

	ttl := mr.TTL(redisKeyPrefix + record.ID)
	assert.InDelta(t, DefaultTTL.Seconds(), ttl.Seconds(), 5)
}

func TestRedisStore_RefusesExpiredRecord(t *testing.T) {
	store, _ := newTestRedisStore(t)

	record := NewRecord(&auth.DevPrincipal{ID: "u1"}, time.Hour, time.Now().Add(-2*time.Hour))
	err := store.Put(context.Background(), record)
	assert.Error(t, err)
}

func TestRedisStore_ExpiryViaKeyTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	record := NewRecord(&auth.DevPrincipal{ID: "u1"}, time.Hour, time.Now())
	require.NoError(t, store.Put(ctx, record))

	mr.FastForward(2 * time.Hour)

	_, err := store.Get(ctx, record.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	record := NewRecord(&auth.DevPrincipal{ID: "u1"}, DefaultTTL, time.Now())
	require.NoError(t, store.Put(ctx, record))
	require.NoError(t, store.Delete(ctx, record.ID))

	_, err := store.Get(ctx, record.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error
	assert.NoError(t, store.Delete(ctx, record.ID))
}
