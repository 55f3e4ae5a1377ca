package service

// Logging standards for relayq.
//
// Use these exact field names for consistency across all logging calls.
const (
	// Core identifiers
	LogFieldMessageID      = "message_id"
	LogFieldConversationID = "conversation_id"
	LogFieldSenderID       = "sender_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"

	// Queue fields
	LogFieldStatus     = "status"
	LogFieldQueueDepth = "queue_depth"
	LogFieldSynced     = "synced"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"

	// Network and external services
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
	LogFieldMethod     = "method"

	// Request tracing
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	// Error and debugging
	LogFieldErrorCode  = "error_code"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

// Level guidelines: DEBUG for per-message drain detail, INFO for
// lifecycle events (startup, sync pass summaries, state transitions),
// WARN for retryable failures and offline transitions, ERROR for
// store failures and exhausted retries.
