// Package memory is the in-process kv.Store used for single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/kv"
	gocache "github.com/patrickmn/go-cache"
)

var _ kv.Store = (*Store)(nil)

type Store struct {
	mu     sync.Mutex // serialises compound operations (GetEx, Take) against writers
	c      *gocache.Cache
	closed atomic.Bool
}

// New creates a store whose janitor evicts expired keys every cleanupInterval.
func New(cleanupInterval time.Duration) *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, kv.ErrUnavailable
	}
	v, ok := s.c.Get(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return clone(v.([]byte)), nil
}

func (s *Store) GetEx(_ context.Context, key string, ttl time.Duration) ([]byte, error) {
	if s.closed.Load() {
		return nil, kv.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	if ttl > 0 {
		s.c.Set(key, v, ttl)
	}
	return clone(v.([]byte)), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return kv.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Set(key, clone(value), expiry(ttl))
	return nil
}

func (s *Store) Take(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, kv.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	s.c.Delete(key)
	return v.([]byte), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return kv.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Delete(key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, kv.ErrUnavailable
	}
	_, ok := s.c.Get(key)
	return ok, nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	if s.closed.Load() {
		return 0, kv.ErrUnavailable
	}
	_, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		return 0, kv.ErrNotFound
	}
	if exp.IsZero() {
		return 0, nil
	}
	return time.Until(exp), nil
}

func (s *Store) Ping(context.Context) error {
	if s.closed.Load() {
		return kv.ErrUnavailable
	}
	return nil
}

// Close drops every key. Any later call reports kv.ErrUnavailable.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.c.Flush()
	}
	return nil
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
