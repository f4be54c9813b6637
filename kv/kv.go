// Package kv defines the TTL key-value contract shared by the OAuth flow stores
// and the session state store, so that the same code runs on an in-process cache
// or on Redis.
package kv

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
)

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = fmt.Errorf("kv: key %w", apperrors.ErrNotFound)
	// ErrUnavailable is returned when the backend cannot be reached. It is never
	// returned for a missing key.
	ErrUnavailable = fmt.Errorf("kv: %w", apperrors.ErrStoreUnavailable)
)

// Store is a byte-oriented key-value store with per-key expiry.
// A ttl <= 0 on Set means the key does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// GetEx returns the value and resets its expiry to ttl in one step.
	GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take returns the value and deletes the key. Concurrent Takes of the same key
	// succeed at most once.
	Take(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime, or 0 when the key has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}
