package config

import (
	"encoding/json"
	"fmt"
	"os"

	"relayq/internal/constants"
	"relayq/internal/models"
	"relayq/internal/security"
)

// LoadConfig reads, validates and normalizes the JSON configuration
// file. Environment overrides are applied after the file is parsed so
// deployments can inject secrets without writing them to disk.
func LoadConfig(filePath string) (*models.Config, error) {
	if err := security.ValidateFilePath(filePath); err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("invalid config path: %v", err)}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("failed to read config file: %v", err)}
	}

	var config models.Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("failed to parse config file: %v", err)}
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnvironmentOverrides(config *models.Config) {
	if url := os.Getenv("RELAYQ_RELAY_URL"); url != "" {
		config.Relay.BaseURL = url
	}
	if token := os.Getenv("RELAYQ_RELAY_AUTH_TOKEN"); token != "" {
		config.Relay.AuthToken = token
	}
	if wsURL := os.Getenv("RELAYQ_WEBSOCKET_URL"); wsURL != "" {
		config.Relay.WebsocketURL = wsURL
	}
	if dbPath := os.Getenv("RELAYQ_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if level := os.Getenv("RELAYQ_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

func applyDefaults(config *models.Config) {
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = constants.DefaultRetentionDays
	}

	if config.Relay.TimeoutSec <= 0 {
		config.Relay.TimeoutSec = constants.DefaultRelayTimeoutSec
	}

	if config.Queue.InitialDelayMs <= 0 {
		config.Queue.InitialDelayMs = constants.DefaultInitialDelayMs
	}
	if config.Queue.BackoffMultiplier <= 0 {
		config.Queue.BackoffMultiplier = constants.DefaultBackoffMultiplier
	}
	if config.Queue.MaxRetries <= 0 {
		config.Queue.MaxRetries = constants.DefaultMaxRetries
	}
	if config.Queue.ResyncIntervalSec <= 0 {
		config.Queue.ResyncIntervalSec = constants.DefaultResyncIntervalSec
	}

	if config.Connectivity.ProbeIntervalSec <= 0 {
		config.Connectivity.ProbeIntervalSec = constants.DefaultProbeIntervalSec
	}

	if config.Server.Port <= 0 {
		config.Server.Port = constants.DefaultServerPort
	}
	if config.Server.ReadTimeoutSec <= 0 {
		config.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if config.Server.WriteTimeoutSec <= 0 {
		config.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if config.Server.IdleTimeoutSec <= 0 {
		config.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = "relayq"
	}
	if config.Tracing.SampleRate <= 0 {
		config.Tracing.SampleRate = 0.1
	}
}

func validateConfig(config *models.Config) error {
	if config.Relay.BaseURL == "" {
		return models.ConfigError{Message: "relay.base_url is required (or set RELAYQ_RELAY_URL)"}
	}
	if config.Relay.RealtimeEnabled && config.Relay.WebsocketURL == "" {
		return models.ConfigError{Message: "relay.websocket_url is required when realtime is enabled"}
	}
	if !config.Database.Ephemeral && config.Database.Path == "" {
		return models.ConfigError{Message: "database.path is required for a durable queue (or set database.ephemeral)"}
	}
	if config.Database.Path != "" {
		if err := security.ValidateFilePath(config.Database.Path); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
		}
	}
	if config.Queue.BackoffMultiplier < 1 {
		return models.ConfigError{Message: "queue.backoffMultiplier must be at least 1"}
	}
	if config.Server.Port > 65535 {
		return models.ConfigError{Message: "server.port must be a valid TCP port"}
	}
	return nil
}
