package config

import (
	"strings"
)

type EnvVars struct {
	AppName  string `env:"APP_NAME,default=MCP Gateway"`
	Port     string `env:"PORT,default=8080"`
	Env      string `env:"ENV,default=DEV"`
	BaseURL  string `env:"BASE_URL,default=http://localhost:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

// GetBaseURL returns the externally visible base URL (e.g., "https://mcp.example.com").
// It is used as the OAuth issuer and to build every advertised endpoint.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}
