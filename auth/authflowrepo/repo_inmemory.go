package authflowrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
)

var (
	_ RequestRepo = (*InMemoryRequestRepo)(nil)
	_ CodeRepo    = (*InMemoryCodeRepo)(nil)
)

// InMemoryRequestRepo is a thread-safe in-memory implementation of RequestRepo
type InMemoryRequestRepo struct {
	mu       sync.RWMutex
	requests map[string]oauthmodel.AuthorizationRequest
}

// NewInMemoryRequestRepo creates a new in-memory authorization request repository
func NewInMemoryRequestRepo() *InMemoryRequestRepo {
	return &InMemoryRequestRepo{
		requests: make(map[string]oauthmodel.AuthorizationRequest),
	}
}

// Upsert stores or updates an authorization request
func (r *InMemoryRequestRepo) Upsert(_ context.Context, req *oauthmodel.AuthorizationRequest) error {
	if req == nil {
		return errors.New("authorization request cannot be nil")
	}
	if req.ID == "" {
		return errors.New("authorization request id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	r.requests[req.ID] = *req
	return nil
}

// Get retrieves an authorization request by id
func (r *InMemoryRequestRepo) Get(_ context.Context, id string) (*oauthmodel.AuthorizationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, exists := r.requests[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &req, nil
}

// Take removes the request and returns it under a single lock.
func (r *InMemoryRequestRepo) Take(_ context.Context, id string) (*oauthmodel.AuthorizationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, exists := r.requests[id]
	if !exists {
		return nil, ErrNotFound
	}
	delete(r.requests, id)
	return &req, nil
}

// Delete removes an authorization request
func (r *InMemoryRequestRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.requests, id)
	return nil
}

func (r *InMemoryRequestRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, req := range r.requests {
		if req.Expired(now) {
			delete(r.requests, id)
			removed++
		}
	}
	return removed, nil
}

// InMemoryCodeRepo is a thread-safe in-memory implementation of CodeRepo
type InMemoryCodeRepo struct {
	mu    sync.Mutex
	codes map[string]oauthmodel.AuthorizationCode
}

// NewInMemoryCodeRepo creates a new in-memory authorization code repository
func NewInMemoryCodeRepo() *InMemoryCodeRepo {
	return &InMemoryCodeRepo{
		codes: make(map[string]oauthmodel.AuthorizationCode),
	}
}

func (r *InMemoryCodeRepo) Upsert(_ context.Context, code *oauthmodel.AuthorizationCode) error {
	if code == nil {
		return errors.New("authorization code cannot be nil")
	}
	if code.Code == "" {
		return errors.New("authorization code value cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes[code.Code] = *code
	return nil
}

// Take removes the code and returns it; the lookup and the delete happen under one lock.
func (r *InMemoryCodeRepo) Take(_ context.Context, code string) (*oauthmodel.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.codes[code]
	if !exists {
		return nil, ErrNotFound
	}
	delete(r.codes, code)
	return &c, nil
}

func (r *InMemoryCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for k, c := range r.codes {
		if c.Expired(now) {
			delete(r.codes, k)
			removed++
		}
	}
	return removed, nil
}
