package config

import "time"

// UpstreamConfig describes the identity service that checks end-user credentials.
// When an issuer is set its endpoints are discovered, otherwise TokenURL is used as-is.
type UpstreamConfig interface {
	GetUpstreamIssuer() string
	GetUpstreamTokenURL() string
	GetUpstreamClientID() string
	GetUpstreamClientSecret() string
	GetUpstreamScopes() []string
	GetUpstreamJWKSURL() string
	GetUpstreamTimeout() time.Duration
}

type Upstream struct {
	Issuer       string        `env:"UPSTREAM_ISSUER"`
	TokenURL     string        `env:"UPSTREAM_TOKEN_URL"`
	ClientID     string        `env:"UPSTREAM_CLIENT_ID"`
	ClientSecret string        `env:"UPSTREAM_CLIENT_SECRET"`
	Scopes       []string      `env:"UPSTREAM_SCOPES"`
	JWKSURL      string        `env:"UPSTREAM_JWKS_URL"`
	Timeout      time.Duration `env:"UPSTREAM_TIMEOUT,default=10s"`
}

var _ UpstreamConfig = Upstream{}

func (u Upstream) GetUpstreamIssuer() string {
	return u.Issuer
}

func (u Upstream) GetUpstreamTokenURL() string {
	return u.TokenURL
}

func (u Upstream) GetUpstreamClientID() string {
	return u.ClientID
}

func (u Upstream) GetUpstreamClientSecret() string {
	return u.ClientSecret
}

func (u Upstream) GetUpstreamScopes() []string {
	return u.Scopes
}

func (u Upstream) GetUpstreamJWKSURL() string {
	return u.JWKSURL
}

func (u Upstream) GetUpstreamTimeout() time.Duration {
	return u.Timeout
}
