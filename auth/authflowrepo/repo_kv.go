package authflowrepo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/kv"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
)

const (
	requestKeyPrefix = "oauth:request:"
	codeKeyPrefix    = "oauth:code:"
)

var (
	_ RequestRepo = (*KVRequestRepo)(nil)
	_ CodeRepo    = (*KVCodeRepo)(nil)
)

// KVRequestRepo keeps authorization requests in a shared kv.Store so any gateway
// instance can serve /login for a request created by another.
type KVRequestRepo struct {
	store kv.Store
	now   func() time.Time
}

func NewKVRequestRepo(store kv.Store) *KVRequestRepo {
	return &KVRequestRepo{store: store, now: time.Now}
}

func (r *KVRequestRepo) Upsert(ctx context.Context, req *oauthmodel.AuthorizationRequest) error {
	if req == nil || req.ID == "" {
		return errors.New("authorization request id cannot be empty")
	}
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("[KVRequestRepo.Upsert] marshal: %w", err)
	}
	return r.store.Set(ctx, requestKeyPrefix+req.ID, b, ttlUntil(req.ExpiresAt, r.now()))
}

func (r *KVRequestRepo) Get(ctx context.Context, id string) (*oauthmodel.AuthorizationRequest, error) {
	b, err := r.store.Get(ctx, requestKeyPrefix+id)
	if err != nil {
		return nil, translate(err)
	}
	var req oauthmodel.AuthorizationRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("[KVRequestRepo.Get] unmarshal: %w", err)
	}
	return &req, nil
}

func (r *KVRequestRepo) Take(ctx context.Context, id string) (*oauthmodel.AuthorizationRequest, error) {
	b, err := r.store.Take(ctx, requestKeyPrefix+id)
	if err != nil {
		return nil, translate(err)
	}
	var req oauthmodel.AuthorizationRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("[KVRequestRepo.Take] unmarshal: %w", err)
	}
	return &req, nil
}

func (r *KVRequestRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, requestKeyPrefix+id)
}

// DeleteExpired is a no-op: the backend expires keys itself.
func (r *KVRequestRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// KVCodeRepo keeps authorization codes in a shared kv.Store. Keys are a hash of
// the code so the store never holds a usable code in its key space.
type KVCodeRepo struct {
	store kv.Store
	now   func() time.Time
}

func NewKVCodeRepo(store kv.Store) *KVCodeRepo {
	return &KVCodeRepo{store: store, now: time.Now}
}

func (r *KVCodeRepo) Upsert(ctx context.Context, code *oauthmodel.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return errors.New("authorization code value cannot be empty")
	}
	b, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("[KVCodeRepo.Upsert] marshal: %w", err)
	}
	return r.store.Set(ctx, codeKey(code.Code), b, ttlUntil(code.ExpiresAt, r.now()))
}

func (r *KVCodeRepo) Take(ctx context.Context, code string) (*oauthmodel.AuthorizationCode, error) {
	b, err := r.store.Take(ctx, codeKey(code))
	if err != nil {
		return nil, translate(err)
	}
	var c oauthmodel.AuthorizationCode
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("[KVCodeRepo.Take] unmarshal: %w", err)
	}
	return &c, nil
}

func (r *KVCodeRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func codeKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return codeKeyPrefix + hex.EncodeToString(sum[:])
}

// ttlUntil never returns less than a second: a zero TTL on Set means "no expiry".
func ttlUntil(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > time.Second {
		return d
	}
	return time.Second
}

func translate(err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
