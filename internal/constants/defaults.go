package constants

// Default queue and retry configuration values
const (
	DefaultInitialDelayMs    = 1000
	DefaultBackoffMultiplier = 2.0
	DefaultMaxBackoffMs      = 60000
	DefaultMaxRetries        = 5
	DefaultRetentionDays     = 30
	DefaultServerPort        = 8089
)

// Default timeout values
const (
	DefaultRelayTimeoutSec        = 30
	DefaultDatabaseRetryAttempts  = 3
	DefaultDatabaseRetryBackoffMs = 200
	DefaultDatabaseMaxBackoffMs   = 2000
	DefaultGracefulShutdownSec    = 30
	DefaultStartupBackoffMs       = 500
	DefaultStartupMaxBackoffSec   = 5
	DefaultResyncIntervalSec      = 60
	DefaultProbeIntervalSec       = 15
	DefaultRetentionSweepHours    = 24
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultWebsocketReconnectSec  = 5
)

// Circuit breaker settings
const (
	CBMaxFailures      = 5
	CBOpenTimeoutSec   = 30
	CBHalfOpenMaxCalls = 1
)

// Privacy settings
const (
	DefaultIDMaskLength = 4
)

// Encryption settings
const (
	EncryptionSalt       = "relayq-store-salt-v1"
	EncryptionLookupSalt = "relayq-lookup-salt-v1"
)

// Channel sizes
const (
	ServerErrorChannelSize  = 1
	ConnectivityChannelSize = 8
)
