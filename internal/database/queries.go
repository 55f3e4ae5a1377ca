package database

// Queued message queries
const (
	UpsertQueuedMessageQuery = `
		INSERT OR REPLACE INTO queued_messages (
			id, conversation_id, sender_id, conversation_id_hash,
			encrypted_content, iv, status, synced, retries, last_error,
			created_at, next_retry_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	SelectQueuedMessageByIDQuery = `
		SELECT id, conversation_id, sender_id, encrypted_content, iv,
			   status, synced, retries, last_error,
			   created_at, next_retry_at, updated_at
		FROM queued_messages
		WHERE id = ?
	`

	SelectUnsyncedQuery = `
		SELECT id, conversation_id, sender_id, encrypted_content, iv,
			   status, synced, retries, last_error,
			   created_at, next_retry_at, updated_at
		FROM queued_messages
		WHERE synced = 0
		ORDER BY created_at ASC, rowid ASC
	`

	SelectByStatusQuery = `
		SELECT id, conversation_id, sender_id, encrypted_content, iv,
			   status, synced, retries, last_error,
			   created_at, next_retry_at, updated_at
		FROM queued_messages
		WHERE status = ?
		ORDER BY created_at ASC, rowid ASC
	`

	CountUnsyncedQuery = `
		SELECT COUNT(*) FROM queued_messages WHERE synced = 0
	`

	CountUnsyncedByStatusQuery = `
		SELECT COUNT(*) FROM queued_messages WHERE synced = 0 AND status = ?
	`

	DeleteQueuedMessageQuery = `
		DELETE FROM queued_messages WHERE id = ?
	`

	DeleteSyncedQuery = `
		DELETE FROM queued_messages WHERE synced = 1
	`

	DeleteAllQuery = `
		DELETE FROM queued_messages
	`

	DeleteOldSyncedQuery = `
		DELETE FROM queued_messages
		WHERE synced = 1
		  AND created_at < ?
	`
)
