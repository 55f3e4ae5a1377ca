package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-encryption-secret-at-least-32-chars-long"

func setupEncryption(t *testing.T) {
	t.Helper()
	t.Setenv("RELAYQ_ENABLE_ENCRYPTION", "true")
	t.Setenv("RELAYQ_ENCRYPTION_SECRET", testSecret)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	setupEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	plaintext := "conv-5531aef2"
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_EmptyStringPassesThrough(t *testing.T) {
	setupEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	out, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestEncrypt_Randomized(t *testing.T) {
	setupEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	first, err := enc.Encrypt("same input")
	require.NoError(t, err)
	second, err := enc.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptForLookup_Deterministic(t *testing.T) {
	setupEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	first, err := enc.EncryptForLookup("conv-1")
	require.NoError(t, err)
	second, err := enc.EncryptForLookup("conv-1")
	require.NoError(t, err)
	other, err := enc.EncryptForLookup("conv-2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestNewEncryptor_MissingSecret(t *testing.T) {
	t.Setenv("RELAYQ_ENABLE_ENCRYPTION", "true")
	t.Setenv("RELAYQ_ENCRYPTION_SECRET", "")

	_, err := NewEncryptor()
	assert.Error(t, err)
}

func TestNewEncryptor_ShortSecret(t *testing.T) {
	t.Setenv("RELAYQ_ENABLE_ENCRYPTION", "true")
	t.Setenv("RELAYQ_ENCRYPTION_SECRET", "too-short")

	_, err := NewEncryptor()
	assert.Error(t, err)
}

func TestEncryption_DisabledIsPassthrough(t *testing.T) {
	t.Setenv("RELAYQ_ENABLE_ENCRYPTION", "false")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	out, err := enc.EncryptIfEnabled("conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", out)

	out, err = enc.DecryptIfEnabled("conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", out)
}

func TestStoreEncryptsRoutingColumnsAtRest(t *testing.T) {
	setupEncryption(t)
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	store, err := New(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	msg := testMessage("msg-1", 1000)
	require.NoError(t, store.Put(ctx, msg))

	// Round trip through the store yields plaintext
	got, err := store.Get(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, "user-1", got.SenderID)

	// The raw column holds ciphertext
	var rawConvID string
	err = store.db.QueryRow("SELECT conversation_id FROM queued_messages WHERE id = ?", "msg-1").Scan(&rawConvID)
	require.NoError(t, err)
	assert.NotEqual(t, "conv-1", rawConvID)
}
