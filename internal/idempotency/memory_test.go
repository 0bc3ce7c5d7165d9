package idempotency

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMemoryStoreTryCreate(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	won, err := store.TryCreate(ctx, "activate:req-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "first claim must win")

	won, err = store.TryCreate(ctx, "activate:req-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "duplicate claim must lose")

	won, err = store.TryCreate(ctx, "activate:req-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "distinct keys are independent")
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	won, err := store.TryCreate(ctx, "activate:req-1", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, won)

	time.Sleep(40 * time.Millisecond)

	// Window has passed, the same key is claimable again
	won, err = store.TryCreate(ctx, "activate:req-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryStoreExists(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	exists, err := store.Exists(ctx, "activate:req-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.TryCreate(ctx, "activate:req-1", time.Minute)
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "activate:req-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.TryCreate(ctx, "short-1", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = store.TryCreate(ctx, "short-2", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = store.TryCreate(ctx, "long", time.Hour)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 2, store.PurgeExpired())
	assert.Equal(t, 0, store.PurgeExpired(), "second sweep finds nothing")

	exists, err := store.Exists(ctx, "long")
	require.NoError(t, err)
	assert.True(t, exists, "unexpired entries survive the sweep")
}

func TestMemoryStoreConcurrentClaims(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	var wins int64
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			won, err := store.TryCreate(ctx, "activate:race", time.Minute)
			if err != nil {
				return err
			}
			if won {
				atomic.AddInt64(&wins, 1)
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), wins, "exactly one concurrent claim may win")
}
