package migrations

import (
	"os"
	"path/filepath"
)

var (
	// MigrationsDir can be overridden in tests or by the application
	MigrationsDir = "scripts/migrations"
)

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	// Try to find schema file in different locations
	searchPaths := []string{
		filepath.Join(MigrationsDir, "001_initial_schema.sql"),
		filepath.Join("..", "..", MigrationsDir, "001_initial_schema.sql"),
		filepath.Join("..", MigrationsDir, "001_initial_schema.sql"),
	}

	for _, path := range searchPaths {
		schemaContent, err := os.ReadFile(path) // #nosec G304 - fixed relative search paths
		if err == nil {
			return string(schemaContent), nil
		}
	}

	// Fall back to the compiled-in schema so a relocated binary can still
	// initialize its store.
	return initialSchema, nil
}

const initialSchema = `
CREATE TABLE IF NOT EXISTS queued_messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    conversation_id_hash TEXT NOT NULL DEFAULT '',
    encrypted_content TEXT NOT NULL,
    iv TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    synced INTEGER NOT NULL DEFAULT 0,
    retries INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    next_retry_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queued_messages_unsynced
    ON queued_messages (synced, created_at);

CREATE INDEX IF NOT EXISTS idx_queued_messages_status
    ON queued_messages (status);

CREATE INDEX IF NOT EXISTS idx_queued_messages_conversation
    ON queued_messages (conversation_id_hash);
`
