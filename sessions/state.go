package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/internal/utils"
	"github.com/jrsteele09/go-mcp-gateway/kv"
)

const stateKeyPrefix = "session:state:"

// ErrStateNotFound is returned when no state exists for a session. It is never
// returned when the backing store is unreachable; that is errors.ErrStoreUnavailable.
var ErrStateNotFound = fmt.Errorf("session state %w", apperrors.ErrNotFound)

// State is the per-session data kept outside the process. Its expiry slides
// forward on every read and write.
type State struct {
	TenantID       string `json:"tenant_id,omitempty"`
	BearerToken    string `json:"bearer_token,omitempty"`
	ResolvedUserID string `json:"resolved_user_id,omitempty"`
	TenantAPIKey   string `json:"tenant_api_key,omitempty"`
}

// StatePatch is a partial update. Nil fields are left as they are.
type StatePatch struct {
	BearerToken    *string
	ResolvedUserID *string
	TenantAPIKey   *string
}

// StateStore keeps session State in a kv.Store.
type StateStore struct {
	store kv.Store
	ttl   time.Duration
}

func NewStateStore(store kv.Store, ttl time.Duration) *StateStore {
	return &StateStore{store: store, ttl: ttl}
}

// Get returns the state and pushes its expiry out by the store's TTL.
func (s *StateStore) Get(ctx context.Context, sessionID string) (*State, error) {
	b, err := s.store.GetEx(ctx, stateKey(sessionID), s.ttl)
	if err != nil {
		return nil, s.translate("Get", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("[StateStore.Get] unmarshal: %w", err)
	}
	return &st, nil
}

// Set replaces the state.
func (s *StateStore) Set(ctx context.Context, sessionID string, state *State) error {
	if sessionID == "" {
		return fmt.Errorf("[StateStore.Set] sessionID is required: %w", apperrors.ErrValidation)
	}
	if state == nil {
		state = &State{}
	}
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("[StateStore.Set] marshal: %w", err)
	}
	if err := s.store.Set(ctx, stateKey(sessionID), b, s.ttl); err != nil {
		return s.translate("Set", err)
	}
	return nil
}

// Update applies patch to existing state. Concurrent updates of the same session
// are last-writer-wins.
func (s *StateStore) Update(ctx context.Context, sessionID string, patch StatePatch) (*State, error) {
	st, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st.BearerToken = utils.ValueOr(patch.BearerToken, st.BearerToken)
	st.ResolvedUserID = utils.ValueOr(patch.ResolvedUserID, st.ResolvedUserID)
	st.TenantAPIKey = utils.ValueOr(patch.TenantAPIKey, st.TenantAPIKey)
	if err := s.Set(ctx, sessionID, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *StateStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, stateKey(sessionID)); err != nil {
		return s.translate("Delete", err)
	}
	return nil
}

func (s *StateStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.store.Exists(ctx, stateKey(sessionID))
	if err != nil {
		return false, s.translate("Exists", err)
	}
	return ok, nil
}

// TTL returns how long the state has left before it expires.
func (s *StateStore) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	d, err := s.store.TTL(ctx, stateKey(sessionID))
	if err != nil {
		return 0, s.translate("TTL", err)
	}
	return d, nil
}

// Ping reports whether the backing store is reachable.
func (s *StateStore) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return s.translate("Ping", err)
	}
	return nil
}

func (s *StateStore) translate(op string, err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return ErrStateNotFound
	}
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		return fmt.Errorf("[StateStore.%s] %w", op, err)
	}
	return fmt.Errorf("[StateStore.%s] %w", op, apperrors.Join(apperrors.ErrInternal, err))
}

func stateKey(sessionID string) string {
	return stateKeyPrefix + sessionID
}
