package models

import "fmt"

// MessageStatus tracks a queued message through its delivery lifecycle.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSending MessageStatus = "sending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s MessageStatus) bool {
	switch s {
	case MessageStatusPending, MessageStatusSending, MessageStatusSent, MessageStatusFailed:
		return true
	}
	return false
}

// QueuedMessage is one outbound message awaiting delivery confirmation.
// The payload is opaque ciphertext produced by the caller; the queue
// never sees plaintext.
type QueuedMessage struct {
	ID                   string        `db:"id" json:"id"`
	ConversationID       string        `db:"conversation_id" json:"conversationId"`
	SenderID             string        `db:"sender_id" json:"senderId"`
	EncryptedContent     string        `db:"encrypted_content" json:"encryptedContent"`
	InitializationVector string        `db:"iv" json:"initializationVector"`
	Status               MessageStatus `db:"status" json:"status"`
	Synced               bool          `db:"synced" json:"synced"`
	Retries              int           `db:"retries" json:"retries"`
	LastError            string        `db:"last_error" json:"lastError,omitempty"`
	CreatedAt            int64         `db:"created_at" json:"createdAt"`
	NextRetryAt          int64         `db:"next_retry_at" json:"nextRetryAt,omitempty"`
	UpdatedAt            int64         `db:"updated_at" json:"updatedAt"`
}

// MessageDraft is the caller-supplied input to QueueMessage. The ID is
// the idempotency key and must be unique per logical message.
type MessageDraft struct {
	ID                   string `json:"id"`
	ConversationID       string `json:"conversationId"`
	SenderID             string `json:"senderId"`
	EncryptedContent     string `json:"encryptedContent"`
	InitializationVector string `json:"initializationVector"`
}

// Validate checks the draft before it is accepted into the queue.
func (d *MessageDraft) Validate() error {
	if d.ID == "" {
		return ValidationError{Field: "id", Message: "message id is required"}
	}
	if d.ConversationID == "" {
		return ValidationError{Field: "conversationId", Message: "conversation id is required"}
	}
	if d.SenderID == "" {
		return ValidationError{Field: "senderId", Message: "sender id is required"}
	}
	if d.EncryptedContent == "" {
		return ValidationError{Field: "encryptedContent", Message: "encrypted content is required"}
	}
	if d.InitializationVector == "" {
		return ValidationError{Field: "initializationVector", Message: "initialization vector is required"}
	}
	return nil
}

// ValidationError is returned synchronously for malformed drafts; it is
// never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid draft: %s: %s", e.Field, e.Message)
}
