// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/kv"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the kv.Store contract. Keys are prefixed with name so
// that runs against a shared server do not collide.
func Run(t *testing.T, name string, s kv.Store) {
	t.Helper()
	ctx := context.Background()
	key := func(k string) string { return name + ":" + k }

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, key("a"), []byte("alpha"), time.Minute))
		b, err := s.Get(ctx, key("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("alpha"), b)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, key("missing"))
		require.ErrorIs(t, err, kv.ErrNotFound)
		require.False(t, errors.Is(err, kv.ErrUnavailable))
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, key("short"), []byte("x"), time.Second))
		require.Eventually(t, func() bool {
			_, err := s.Get(ctx, key("short"))
			return errors.Is(err, kv.ErrNotFound)
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("GetExRefreshesTTL", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, key("slide"), []byte("s"), 5*time.Second))
		before, err := s.TTL(ctx, key("slide"))
		require.NoError(t, err)

		b, err := s.GetEx(ctx, key("slide"), time.Hour)
		require.NoError(t, err)
		require.Equal(t, []byte("s"), b)

		after, err := s.TTL(ctx, key("slide"))
		require.NoError(t, err)
		require.GreaterOrEqual(t, after, before)
		require.Greater(t, after, 50*time.Minute)
	})

	t.Run("TakeOnce", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, key("once"), []byte("1"), time.Minute))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Take(ctx, key("once")); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())

		exists, err := s.Exists(ctx, key("once"))
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("DeleteAndExists", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, key("gone"), []byte("g"), 0))
		exists, err := s.Exists(ctx, key("gone"))
		require.NoError(t, err)
		require.True(t, exists)

		ttl, err := s.TTL(ctx, key("gone"))
		require.NoError(t, err)
		require.Zero(t, ttl)

		require.NoError(t, s.Delete(ctx, key("gone")))
		exists, err = s.Exists(ctx, key("gone"))
		require.NoError(t, err)
		require.False(t, exists)

		_, err = s.TTL(ctx, key("gone"))
		require.ErrorIs(t, err, kv.ErrNotFound)
	})
}
