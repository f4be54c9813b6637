// Package redis provides a Redis-backed kv.Store so that OAuth flow state and
// session state are shared by every gateway instance.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/kv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ kv.Store = (*Store)(nil)

// Config contains configuration options for the Redis store
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "mcpgw:"
	KeyPrefix string
}

// Store implements kv.Store using Redis
type Store struct {
	client    *redis.Client
	keyPrefix string

	// Older servers lack GETEX (6.2) and GETDEL (6.2); once either is rejected
	// the store switches to the multi-command fallback for good.
	noGetEx  atomic.Bool
	noGetDel atomic.Bool
}

// New creates a new Redis-based store.
func New(config Config) (*Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "mcpgw:"
	}
	return &Store{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Dial connects to addr and verifies the connection with a PING.
func Dial(ctx context.Context, addr, password string, db int, keyPrefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, classify("PING", "", err)
	}
	return New(Config{Client: client, KeyPrefix: keyPrefix})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err != nil {
		return nil, classify("GET", key, err)
	}
	return b, nil
}

func (s *Store) GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	if ttl <= 0 {
		return s.Get(ctx, key)
	}
	if !s.noGetEx.Load() {
		b, err := s.client.GetEx(ctx, s.buildKey(key), ttl).Bytes()
		if err == nil {
			return b, nil
		}
		if !isUnknownCommand(err) {
			return nil, classify("GETEX", key, err)
		}
		s.noGetEx.Store(true)
		log.Warn().Msg("redis server does not support GETEX, falling back to GET+EXPIRE")
	}

	b, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	// The value has been read; a failed refresh only shortens its life.
	if err := s.client.Expire(ctx, s.buildKey(key), ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis EXPIRE after GET failed")
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.buildKey(key), value, ttl).Err(); err != nil {
		return classify("SET", key, err)
	}
	return nil
}

func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	if !s.noGetDel.Load() {
		b, err := s.client.GetDel(ctx, s.buildKey(key)).Bytes()
		if err == nil {
			return b, nil
		}
		if !isUnknownCommand(err) {
			return nil, classify("GETDEL", key, err)
		}
		s.noGetDel.Store(true)
		log.Warn().Msg("redis server does not support GETDEL, falling back to MULTI GET/DEL")
	}

	var get *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, s.buildKey(key))
		pipe.Del(ctx, s.buildKey(key))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, classify("MULTI GET/DEL", key, err)
	}
	b, err := get.Bytes()
	if err != nil {
		return nil, classify("GET", key, err)
	}
	return b, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil {
		return classify("DEL", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.buildKey(key)).Result()
	if err != nil {
		return false, classify("EXISTS", key, err)
	}
	return n > 0, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.buildKey(key)).Result()
	if err != nil {
		return 0, classify("TTL", key, err)
	}
	// go-redis passes the -2 (missing) and -1 (no expiry) replies through unscaled.
	switch d {
	case -2:
		return 0, kv.ErrNotFound
	case -1:
		return 0, nil
	}
	return d, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return classify("PING", "", s.client.Ping(ctx).Err())
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) buildKey(key string) string {
	return s.keyPrefix + key
}

// classify separates a reply from the server, which is a command failure, from a
// failure to talk to the server at all, which is kv.ErrUnavailable.
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return kv.ErrNotFound
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return fmt.Errorf("redis %s %s: %w", op, key, err)
	}
	return fmt.Errorf("redis %s %s: %w", op, key, errors.Join(kv.ErrUnavailable, err))
}

func isUnknownCommand(err error) bool {
	var replyErr redis.Error
	if !errors.As(err, &replyErr) {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown command")
}
