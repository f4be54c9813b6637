package sessions_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/internal/utils"
	"github.com/jrsteele09/go-mcp-gateway/kv/memory"
	"github.com/jrsteele09/go-mcp-gateway/sessions"
	"github.com/stretchr/testify/require"
)

func newStateStore(t *testing.T, ttl time.Duration) (*sessions.StateStore, *memory.Store) {
	t.Helper()
	store := memory.New(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	return sessions.NewStateStore(store, ttl), store
}

func TestStateStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newStateStore(t, time.Hour)

	want := &sessions.State{TenantID: "tenant-a", BearerToken: "tok", ResolvedUserID: "user-1"}
	require.NoError(t, s.Set(ctx, "sess-1", want))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	ok, err := s.Exists(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(ctx, "sess-1"))
	_, err = s.Get(ctx, "sess-1")
	require.ErrorIs(t, err, sessions.ErrStateNotFound)
}

func TestStateStore_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := newStateStore(t, time.Hour)

	_, err := s.Update(ctx, "nope", sessions.StatePatch{BearerToken: utils.Ptr("x")})
	require.ErrorIs(t, err, sessions.ErrStateNotFound)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.False(t, apperrors.Is(err, apperrors.ErrStoreUnavailable))
}

func TestStateStore_UpdatePartial(t *testing.T) {
	ctx := context.Background()
	s, _ := newStateStore(t, time.Hour)

	require.NoError(t, s.Set(ctx, "sess-1", &sessions.State{TenantID: "tenant-a", BearerToken: "old", TenantAPIKey: "key"}))

	st, err := s.Update(ctx, "sess-1", sessions.StatePatch{BearerToken: utils.Ptr("new"), ResolvedUserID: utils.Ptr("user-9")})
	require.NoError(t, err)
	require.Equal(t, "new", st.BearerToken)
	require.Equal(t, "user-9", st.ResolvedUserID)
	require.Equal(t, "key", st.TenantAPIKey)
	require.Equal(t, "tenant-a", st.TenantID)
}

func TestStateStore_SlidingTTL(t *testing.T) {
	ctx := context.Background()
	s, _ := newStateStore(t, 2*time.Second)

	require.NoError(t, s.Set(ctx, "sess-1", &sessions.State{BearerToken: "tok"}))

	time.Sleep(1200 * time.Millisecond)
	before, err := s.TTL(ctx, "sess-1")
	require.NoError(t, err)
	require.Less(t, before, 1500*time.Millisecond)

	_, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)

	after, err := s.TTL(ctx, "sess-1")
	require.NoError(t, err)
	require.Greater(t, after, before)

	// Kept alive by reads past its original deadline
	time.Sleep(1200 * time.Millisecond)
	_, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
}

func TestStateStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s, store := newStateStore(t, time.Hour)
	require.NoError(t, store.Close())

	_, err := s.Get(ctx, "sess-1")
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	require.False(t, apperrors.Is(err, sessions.ErrStateNotFound))

	err = s.Set(ctx, "sess-1", &sessions.State{})
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	require.ErrorIs(t, s.Ping(ctx), apperrors.ErrStoreUnavailable)
}
