package config

import "time"

type SessionConfig interface {
	GetSessionMaxIdle() time.Duration
	GetSessionCleanupInterval() time.Duration
	GetSessionStateTTL() time.Duration
	GetSSEKeepAlive() time.Duration
}

type Sessions struct {
	MaxIdle         time.Duration `env:"SESSION_MAX_AGE,default=1h"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL,default=5m"`
	StateTTL        time.Duration `env:"SESSION_STATE_TTL,default=3600s"`
	SSEKeepAlive    time.Duration `env:"SSE_KEEPALIVE_INTERVAL,default=30s"`
}

var _ SessionConfig = Sessions{}

func (s Sessions) GetSessionMaxIdle() time.Duration {
	return s.MaxIdle
}

func (s Sessions) GetSessionCleanupInterval() time.Duration {
	return s.CleanupInterval
}

func (s Sessions) GetSessionStateTTL() time.Duration {
	return s.StateTTL
}

func (s Sessions) GetSSEKeepAlive() time.Duration {
	return s.SSEKeepAlive
}
