package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cerberus/internal/repository/memory"
)

func TestLockStore_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLockStore()

	h, err := store.Acquire(ctx, "loan:1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "loan:1", h.Key)
	assert.NotEmpty(t, h.Token)

	// Second acquire on a held key reports contention, not an error
	h2, err := store.Acquire(ctx, "loan:1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, h2)

	// A different key is independent
	h3, err := store.Acquire(ctx, "loan:2", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, h3)

	require.NoError(t, store.Release(ctx, h))

	h4, err := store.Acquire(ctx, "loan:1", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, h4)
}

func TestLockStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLockStore()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	h, err := store.Acquire(ctx, "loan:1", 15*time.Second)
	require.NoError(t, err)
	require.NotNil(t, h)

	// Still held just before expiry
	now = now.Add(14 * time.Second)
	h2, err := store.Acquire(ctx, "loan:1", 15*time.Second)
	require.NoError(t, err)
	assert.Nil(t, h2)

	// Expired: the key is free again
	now = now.Add(2 * time.Second)
	h3, err := store.Acquire(ctx, "loan:1", 15*time.Second)
	require.NoError(t, err)
	require.NotNil(t, h3)

	// The stale handle must not release the new holder
	require.NoError(t, store.Release(ctx, h))
	h4, err := store.Acquire(ctx, "loan:1", 15*time.Second)
	require.NoError(t, err)
	assert.Nil(t, h4)
}

func TestLockStore_ReleaseNilHandle(t *testing.T) {
	store := memory.NewLockStore()
	assert.Error(t, store.Release(context.Background(), nil))
}
