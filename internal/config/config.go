package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SessionConfig
	UpstreamConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
	GetExposedHeaders() string
}

// Settings is the decoded process configuration. Every concern is read from
// the environment, with defaults carried in the struct tags.
type Settings struct {
	EnvVars
	Cors
	OAuth
	Sessions
	Upstream
	Store
}

var _ Config = (*Settings)(nil)

// Load reads the optional .env files and decodes the environment into Settings.
// Missing env files are ignored so the same binary runs with or without them.
func Load(envFiles ...string) (*Settings, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("[config.Load] loading %s: %w", f, err)
		}
	}

	s := &Settings{}
	if err := envdecode.Decode(s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("[config.Load] decoding environment: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("[config.Load] %w", err)
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.CodeLength < 16 {
		return fmt.Errorf("OAUTH_CODE_LENGTH must be at least 16 bytes, got %d", s.CodeLength)
	}
	if s.AuthCodeTTL <= 0 || s.AuthRequestTTL <= 0 {
		return errors.New("OAuth TTLs must be positive")
	}
	if s.StateTTL <= 0 {
		return errors.New("SESSION_STATE_TTL must be positive")
	}
	switch s.Driver {
	case StoreDriverMemory, StoreDriverRedis:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", s.Driver)
	}
	return nil
}
