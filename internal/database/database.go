package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"relayq/internal/migrations"
	"relayq/internal/models"
	"relayq/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable queue store backed by SQLite. Records survive
// process restarts; every mutation is persisted before the call
// returns. Losing a queued message is a correctness violation, so
// storage errors always propagate to the caller.
type Store struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Store, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or overwrites the record keyed by msg.ID.
func (s *Store) Put(ctx context.Context, msg *models.QueuedMessage) error {
	encryptedConvID, err := s.encryptor.EncryptIfEnabled(msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to encrypt conversation ID: %w", err)
	}

	encryptedSenderID, err := s.encryptor.EncryptIfEnabled(msg.SenderID)
	if err != nil {
		return fmt.Errorf("failed to encrypt sender ID: %w", err)
	}

	convIDHash, err := s.encryptor.EncryptForLookupIfEnabled(msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to encrypt conversation ID for lookup: %w", err)
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		_, err := s.db.ExecContext(ctx, UpsertQueuedMessageQuery,
			msg.ID,
			encryptedConvID,
			encryptedSenderID,
			convIDHash,
			msg.EncryptedContent,
			msg.InitializationVector,
			string(msg.Status),
			msg.Synced,
			msg.Retries,
			msg.LastError,
			msg.CreatedAt,
			msg.NextRetryAt,
			msg.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save queued message: %w", err)
		}
		return nil
	}, "put queued message")
}

// Get returns the record or (nil, nil) when no record exists.
func (s *Store) Get(ctx context.Context, id string) (*models.QueuedMessage, error) {
	row := s.db.QueryRowContext(ctx, SelectQueuedMessageByIDQuery, id)

	msg, err := s.scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued message: %w", err)
	}
	return msg, nil
}

// Delete removes the record by id; deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, DeleteQueuedMessageQuery, id); err != nil {
			return fmt.Errorf("failed to delete queued message: %w", err)
		}
		return nil
	}, "delete queued message")
}

// QueryUnsynced returns all unsynced records oldest first. Ties on
// created_at fall back to insertion order via rowid.
func (s *Store) QueryUnsynced(ctx context.Context) ([]*models.QueuedMessage, error) {
	return s.queryMessages(ctx, SelectUnsyncedQuery)
}

// QueryByStatus returns all records in the given lifecycle state.
func (s *Store) QueryByStatus(ctx context.Context, status models.MessageStatus) ([]*models.QueuedMessage, error) {
	return s.queryMessages(ctx, SelectByStatusQuery, string(status))
}

// CountUnsynced returns the number of records still awaiting delivery.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, CountUnsyncedQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unsynced messages: %w", err)
	}
	return count, nil
}

// CountUnsyncedByStatus returns the unsynced count for one status.
func (s *Store) CountUnsyncedByStatus(ctx context.Context, status models.MessageStatus) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, CountUnsyncedByStatusQuery, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unsynced messages by status: %w", err)
	}
	return count, nil
}

// Clear removes all records unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, DeleteAllQuery); err != nil {
			return fmt.Errorf("failed to clear queue: %w", err)
		}
		return nil
	}, "clear queue")
}

// DeleteSynced removes all acknowledged records and returns how many
// were removed.
func (s *Store) DeleteSynced(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, DeleteSyncedQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to delete synced messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// CleanupOldSynced removes acknowledged records older than the
// retention window.
func (s *Store) CleanupOldSynced(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	if _, err := s.db.ExecContext(ctx, DeleteOldSyncedQuery, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup old synced messages: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanMessage(row rowScanner) (*models.QueuedMessage, error) {
	var encryptedConvID, encryptedSenderID, status string
	msg := &models.QueuedMessage{}

	err := row.Scan(
		&msg.ID,
		&encryptedConvID,
		&encryptedSenderID,
		&msg.EncryptedContent,
		&msg.InitializationVector,
		&status,
		&msg.Synced,
		&msg.Retries,
		&msg.LastError,
		&msg.CreatedAt,
		&msg.NextRetryAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Status = models.MessageStatus(status)

	msg.ConversationID, err = s.encryptor.DecryptIfEnabled(encryptedConvID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt conversation ID: %w", err)
	}

	msg.SenderID, err = s.encryptor.DecryptIfEnabled(encryptedSenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sender ID: %w", err)
	}

	return msg, nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*models.QueuedMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*models.QueuedMessage
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queued messages: %w", err)
	}
	return messages, nil
}
