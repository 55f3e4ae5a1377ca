package types

import "context"

// SendMessageRequest is the wire payload for one outbound message. The
// content is opaque ciphertext; the relay server never sees plaintext.
type SendMessageRequest struct {
	ID                   string `json:"id"`
	ConversationID       string `json:"conversationId"`
	SenderID             string `json:"senderId"`
	EncryptedContent     string `json:"encryptedContent"`
	InitializationVector string `json:"iv"`
}

// SendMessageResponse is the relay server's acknowledgement.
type SendMessageResponse struct {
	ID         string `json:"id"`
	AcceptedAt int64  `json:"acceptedAt"`
}

// HealthResponse reports relay server liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// Client is the send capability the queue drains through.
type Client interface {
	SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error)
	HealthCheck(ctx context.Context) error
}
