// Package sessions tracks live MCP sessions per tenant and the auxiliary state
// that lets a session survive a process restart.
package sessions

import (
	"sync/atomic"
	"time"
)

// Handle is the per-session protocol server a Session owns. It is closed
// exactly once, when the session leaves the registry.
type Handle interface {
	Close() error
}

// Session is one live MCP connection bound to a tenant and a user.
type Session struct {
	ID        string    // Unique session identifier (UUID), sent as Mcp-Session-Id
	TenantID  string    // Tenant this session belongs to, never changes
	UserID    string    // Subject of the bearer token that opened the session
	Handle    Handle    // Exclusively owned by this session
	CreatedAt time.Time // When the session was created or restored

	lastActivity atomic.Int64 // unix nanos, refreshed on every lookup
}

// LastActivity is the time of the most recent lookup.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}
