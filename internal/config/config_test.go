package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, 10*time.Minute, c.GetAuthRequestTTL())
	require.Equal(t, 60*time.Second, c.GetAuthCodeTTL())
	require.Equal(t, 5*time.Minute, c.GetOAuthSweepInterval())
	require.Equal(t, 32, c.GetCodeGenerationLength())
	require.Equal(t, time.Hour, c.GetSessionMaxIdle())
	require.Equal(t, 3600*time.Second, c.GetSessionStateTTL())
	require.Equal(t, config.StoreDriverMemory, c.GetStoreDriver())
	require.False(t, c.GetRequireRegisteredClients())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("*"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("OAUTH_AUTH_CODE_TTL", "30s")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example;https://b.example")
	t.Setenv("BASE_URL", "https://mcp.example.com/")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 30*time.Second, c.GetAuthCodeTTL())
	require.Equal(t, config.StoreDriverRedis, c.GetStoreDriver())
	require.Equal(t, "https://mcp.example.com", c.GetBaseURL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("*"))
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APP_NAME=Gateway Under Test\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("APP_NAME") })

	c, err := config.Load(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "Gateway Under Test", c.GetAppName())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "etcd")
		_, err := config.Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "STORE_DRIVER")
	})

	t.Run("short codes", func(t *testing.T) {
		t.Setenv("OAUTH_CODE_LENGTH", "8")
		_, err := config.Load()
		require.Error(t, err)
	})
}
