package config

import "time"

type OAuthConfig interface {
	GetAuthRequestTTL() time.Duration
	GetAuthCodeTTL() time.Duration
	GetOAuthSweepInterval() time.Duration
	GetCodeGenerationLength() int
	GetRequireRegisteredClients() bool
}

type OAuth struct {
	AuthRequestTTL           time.Duration `env:"OAUTH_AUTH_REQUEST_TTL,default=10m"`
	AuthCodeTTL              time.Duration `env:"OAUTH_AUTH_CODE_TTL,default=60s"`
	SweepInterval            time.Duration `env:"OAUTH_SWEEP_INTERVAL,default=5m"`
	CodeLength               int           `env:"OAUTH_CODE_LENGTH,default=32"`
	RequireRegisteredClients bool          `env:"OAUTH_REQUIRE_REGISTERED_CLIENTS,default=false"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetAuthRequestTTL() time.Duration {
	return o.AuthRequestTTL
}

func (o OAuth) GetAuthCodeTTL() time.Duration {
	return o.AuthCodeTTL
}

func (o OAuth) GetOAuthSweepInterval() time.Duration {
	return o.SweepInterval
}

func (o OAuth) GetCodeGenerationLength() int {
	return o.CodeLength // 32 bytes = 256 bits
}

func (o OAuth) GetRequireRegisteredClients() bool {
	return o.RequireRegisteredClients
}
