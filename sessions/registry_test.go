package sessions_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/sessions"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	closed atomic.Int32
}

func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRegistry(t *testing.T) (*sessions.Registry, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	return sessions.NewRegistry(sessions.WithNowTime(c.Now)), c
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, c := newRegistry(t)
	h := &fakeHandle{}

	id, err := r.Create("tenant-a", "user-1", h)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s, ok := r.Get("tenant-a", id)
	require.True(t, ok)
	require.Same(t, h, s.Handle)
	require.Equal(t, "user-1", s.UserID)
	first := s.LastActivity()

	c.Advance(time.Second)
	s, ok = r.Get("tenant-a", id)
	require.True(t, ok)
	require.True(t, s.LastActivity().After(first))

	t.Run("tenants are isolated", func(t *testing.T) {
		_, ok := r.Get("tenant-b", id)
		require.False(t, ok)
		require.Equal(t, 1, r.CountTenant("tenant-a"))
		require.Zero(t, r.CountTenant("tenant-b"))
	})
}

func TestRegistry_CreateValidation(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Create("", "user", &fakeHandle{})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = r.Create("tenant", "user", nil)
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRegistry_Delete(t *testing.T) {
	r, _ := newRegistry(t)
	h := &fakeHandle{}
	id, err := r.Create("tenant-a", "user-1", h)
	require.NoError(t, err)

	require.True(t, r.Delete("tenant-a", id))
	require.Equal(t, int32(1), h.closed.Load())
	require.Zero(t, r.Count())

	require.False(t, r.Delete("tenant-a", id))
	require.Equal(t, int32(1), h.closed.Load())
}

func TestRegistry_Restore(t *testing.T) {
	r, _ := newRegistry(t)

	h1 := &fakeHandle{}
	s, err := r.Restore("tenant-a", "known-id", "user-1", h1)
	require.NoError(t, err)
	require.Equal(t, "known-id", s.ID)

	got, ok := r.Get("tenant-a", "known-id")
	require.True(t, ok)
	require.Same(t, h1, got.Handle)

	// A second restore of a live id keeps the first handle
	h2 := &fakeHandle{}
	s, err = r.Restore("tenant-a", "known-id", "user-1", h2)
	require.NoError(t, err)
	require.Same(t, h1, s.Handle)
	require.Equal(t, int32(1), h2.closed.Load())
	require.Zero(t, h1.closed.Load())
}

func TestRegistry_CleanupStale(t *testing.T) {
	t.Run("zero max age removes everything", func(t *testing.T) {
		r, _ := newRegistry(t)
		handles := make([]*fakeHandle, 5)
		for i := range handles {
			handles[i] = &fakeHandle{}
			_, err := r.Create(fmt.Sprintf("tenant-%d", i%2), "user", handles[i])
			require.NoError(t, err)
		}
		require.Equal(t, 5, r.CleanupStale(0))
		require.Zero(t, r.Count())
		for _, h := range handles {
			require.Equal(t, int32(1), h.closed.Load())
		}
	})

	t.Run("keeps recently used sessions", func(t *testing.T) {
		r, c := newRegistry(t)
		idle, err := r.Create("tenant-a", "user", &fakeHandle{})
		require.NoError(t, err)
		busy, err := r.Create("tenant-a", "user", &fakeHandle{})
		require.NoError(t, err)

		c.Advance(50 * time.Minute)
		_, ok := r.Get("tenant-a", busy)
		require.True(t, ok)
		c.Advance(20 * time.Minute)

		require.Equal(t, 1, r.CleanupStale(time.Hour))
		_, ok = r.Get("tenant-a", idle)
		require.False(t, ok)
		_, ok = r.Get("tenant-a", busy)
		require.True(t, ok)
	})
}

func TestRegistry_Concurrent(t *testing.T) {
	r := sessions.NewRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tenant := fmt.Sprintf("tenant-%d", i%5)
			id, err := r.Create(tenant, "user", &fakeHandle{})
			if err != nil {
				return
			}
			r.Get(tenant, id)
			if i%2 == 0 {
				r.Delete(tenant, id)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 25, r.Count())
	require.Equal(t, 25, r.CloseAll())
	require.Zero(t, r.Count())
}
