package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/rs/zerolog/log"
)

// Registry is an in-memory map of live sessions, partitioned by tenant.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session // tenantID -> sessionID -> Session
	nowTime  func() time.Time
}

type RegistryOption func(*Registry)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowTime = nowFunc
	}
}

// NewRegistry creates an empty session registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]map[string]*Session),
		nowTime:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers handle under a new random session id.
func (r *Registry) Create(tenantID, userID string, handle Handle) (string, error) {
	if err := checkArgs(tenantID, handle); err != nil {
		return "", err
	}
	s := r.newSession(uuid.New().String(), tenantID, userID, handle)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(s)
	return s.ID, nil
}

// Restore registers handle under a session id that was issued before, typically
// by a previous process. If the id is already live the existing session wins and
// handle is closed, so a session never owns two handles.
func (r *Registry) Restore(tenantID, sessionID, userID string, handle Handle) (*Session, error) {
	if err := checkArgs(tenantID, handle); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required: %w", apperrors.ErrValidation)
	}

	r.mu.Lock()
	if existing, ok := r.sessions[tenantID][sessionID]; ok {
		r.mu.Unlock()
		existing.touch(r.nowTime())
		closeHandle(tenantID, sessionID, handle)
		return existing, nil
	}
	s := r.newSession(sessionID, tenantID, userID, handle)
	r.insertLocked(s)
	r.mu.Unlock()
	return s, nil
}

// Get retrieves a live session and refreshes its last activity.
func (r *Registry) Get(tenantID, sessionID string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[tenantID][sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.touch(r.nowTime())
	return s, true
}

// Delete removes a session and closes its handle. It reports whether the session existed.
func (r *Registry) Delete(tenantID, sessionID string) bool {
	r.mu.Lock()
	tenantSessions, ok := r.sessions[tenantID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	s, ok := tenantSessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(tenantSessions, sessionID)

	// Clean up empty tenant map
	if len(tenantSessions) == 0 {
		delete(r.sessions, tenantID)
	}
	r.mu.Unlock()

	closeHandle(tenantID, sessionID, s.Handle)
	return true
}

// CleanupStale removes every session idle for maxAge or longer and returns how many went.
func (r *Registry) CleanupStale(maxAge time.Duration) int {
	cutoff := r.nowTime().Add(-maxAge)

	var stale []*Session
	r.mu.Lock()
	for tenantID, tenantSessions := range r.sessions {
		for id, s := range tenantSessions {
			if s.LastActivity().After(cutoff) {
				continue
			}
			stale = append(stale, s)
			delete(tenantSessions, id)
		}
		if len(tenantSessions) == 0 {
			delete(r.sessions, tenantID)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		closeHandle(s.TenantID, s.ID, s.Handle)
	}
	return len(stale)
}

// Count returns the number of live sessions across all tenants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, tenantSessions := range r.sessions {
		n += len(tenantSessions)
	}
	return n
}

// CountTenant returns the number of live sessions for one tenant.
func (r *Registry) CountTenant(tenantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[tenantID])
}

// RunJanitor calls CleanupStale every interval until ctx is cancelled.
func (r *Registry) RunJanitor(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.CleanupStale(maxAge); n > 0 {
				log.Info().Int("removed", n).Int("remaining", r.Count()).Msg("stale mcp sessions removed")
			}
		}
	}
}

// CloseAll removes every session, closing their handles. Used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]map[string]*Session)
	r.mu.Unlock()

	n := 0
	for tenantID, tenantSessions := range all {
		for id, s := range tenantSessions {
			closeHandle(tenantID, id, s.Handle)
			n++
		}
	}
	return n
}

func (r *Registry) newSession(id, tenantID, userID string, handle Handle) *Session {
	now := r.nowTime()
	s := &Session{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Handle:    handle,
		CreatedAt: now,
	}
	s.touch(now)
	return s
}

func (r *Registry) insertLocked(s *Session) {
	// Initialize tenant map if it doesn't exist
	if _, ok := r.sessions[s.TenantID]; !ok {
		r.sessions[s.TenantID] = make(map[string]*Session)
	}
	r.sessions[s.TenantID][s.ID] = s
}

func checkArgs(tenantID string, handle Handle) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required: %w", apperrors.ErrValidation)
	}
	if handle == nil {
		return fmt.Errorf("session handle is required: %w", apperrors.ErrValidation)
	}
	return nil
}

func closeHandle(tenantID, sessionID string, h Handle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Str("session_id", sessionID).Msg("closing session handle")
	}
}
