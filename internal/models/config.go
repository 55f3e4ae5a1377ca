package models

// Config holds the application configuration
type Config struct {
	Relay         RelayConfig        `json:"relay"`
	Database      DatabaseConfig     `json:"database"`
	Queue         QueueConfig        `json:"queue"`
	Connectivity  ConnectivityConfig `json:"connectivity"`
	Server        ServerConfig       `json:"server"`
	Tracing       TracingConfig      `json:"tracing"`
	LogLevel      string             `json:"log_level"`
	RetentionDays int                `json:"retentionDays"`
}

// RelayConfig holds relay server related configurations
type RelayConfig struct {
	BaseURL         string `json:"base_url"`
	AuthToken       string `json:"auth_token"`
	TimeoutSec      int    `json:"timeoutSec"`
	RealtimeEnabled bool   `json:"realtimeEnabled"`
	WebsocketURL    string `json:"websocket_url"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path      string `json:"path"`
	Ephemeral bool   `json:"ephemeral"`
}

// QueueConfig holds drain and retry policy configurations
type QueueConfig struct {
	InitialDelayMs    int     `json:"initialDelayMs"`
	BackoffMultiplier float64 `json:"backoffMultiplier"`
	MaxRetries        int     `json:"maxRetries"`
	ResyncIntervalSec int     `json:"resyncIntervalSec"`
}

// ConnectivityConfig holds online/offline detection configurations
type ConnectivityConfig struct {
	ProbeIntervalSec int `json:"probeIntervalSec"`
}

// ServerConfig holds admin HTTP server configurations
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// TracingConfig holds OpenTelemetry configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// Encryption parameters for the at-rest column encryptor.
const (
	NonceSize  = 12
	KeySize    = 32
	Iterations = 100000
)
