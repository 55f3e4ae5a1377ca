package config

import (
	"os"
	"path/filepath"
	"testing"

	"relayq/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const minimalConfig = `{
	"relay": {"base_url": "https://relay.example.com"},
	"database": {"path": "/var/lib/relayq/queue.db"}
}`

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://relay.example.com", cfg.Relay.BaseURL)
	assert.Equal(t, 30, cfg.Relay.TimeoutSec)
	assert.Equal(t, 1000, cfg.Queue.InitialDelayMs)
	assert.Equal(t, 2.0, cfg.Queue.BackoffMultiplier)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, 60, cfg.Queue.ResyncIntervalSec)
	assert.Equal(t, 15, cfg.Connectivity.ProbeIntervalSec)
	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "relayq", cfg.Tracing.ServiceName)
}

func TestLoadConfig_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `{
		"relay": {"base_url": "https://relay.example.com", "timeoutSec": 10},
		"database": {"path": "/var/lib/relayq/queue.db"},
		"queue": {"initialDelayMs": 500, "backoffMultiplier": 3, "maxRetries": 2},
		"server": {"port": 9090},
		"log_level": "debug",
		"retentionDays": 7
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Relay.TimeoutSec)
	assert.Equal(t, 500, cfg.Queue.InitialDelayMs)
	assert.Equal(t, 3.0, cfg.Queue.BackoffMultiplier)
	assert.Equal(t, 2, cfg.Queue.MaxRetries)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.RetentionDays)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("RELAYQ_RELAY_URL", "https://override.example.com")
	t.Setenv("RELAYQ_RELAY_AUTH_TOKEN", "secret-token")
	t.Setenv("RELAYQ_DB_PATH", "/tmp/override.db")
	t.Setenv("RELAYQ_LOG_LEVEL", "warn")

	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.Relay.BaseURL)
	assert.Equal(t, "secret-token", cfg.Relay.AuthToken)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	var cfgErr models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, "{not json")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoadConfig_TraversalPathRejected(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd.json")
	require.Error(t, err)
}

func TestLoadConfig_MissingRelayURL(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/var/lib/relayq/queue.db"}}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoadConfig_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `{"relay": {"base_url": "https://relay.example.com"}}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestLoadConfig_EphemeralNeedsNoPath(t *testing.T) {
	path := writeConfig(t, `{
		"relay": {"base_url": "https://relay.example.com"},
		"database": {"ephemeral": true}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Database.Ephemeral)
}

func TestLoadConfig_RealtimeRequiresWebsocketURL(t *testing.T) {
	path := writeConfig(t, `{
		"relay": {"base_url": "https://relay.example.com", "realtimeEnabled": true},
		"database": {"path": "/var/lib/relayq/queue.db"}
	}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket_url")
}

func TestLoadConfig_InvalidBackoffMultiplier(t *testing.T) {
	path := writeConfig(t, `{
		"relay": {"base_url": "https://relay.example.com"},
		"database": {"path": "/var/lib/relayq/queue.db"},
		"queue": {"backoffMultiplier": 0.5}
	}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoffMultiplier")
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	path := writeConfig(t, `{
		"relay": {"base_url": "https://relay.example.com"},
		"database": {"path": "/var/lib/relayq/queue.db"},
		"server": {"port": 70000}
	}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}
