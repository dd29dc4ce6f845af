package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Session.ExpiryTTL)
	assert.Equal(t, 30*time.Second, cfg.Session.KeepAlive)
	assert.Equal(t, "gochannel", cfg.PubSub.Driver)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel.Level())
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7000"
session:
  keep_alive: 10s
log:
  level: debug
`), 0o600))

	t.Setenv("RELAY_SESSION_EXPIRY_TTL", "2m")

	cfg, err := LoadConfig([]string{"--config_file", path, "--http.addr", ":7001"})
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.HTTP.Addr, "flag beats file")
	assert.Equal(t, 10*time.Second, cfg.Session.KeepAlive, "file beats default")
	assert.Equal(t, 2*time.Minute, cfg.Session.ExpiryTTL, "env beats default")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel.Level())
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig([]string{"--store.driver", "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	_, err = LoadConfig([]string{"--pubsub.driver", "amqp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub.amqp_url")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
