package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	err := New(ErrCodeStoreQuery, "query failed")
	assert.Equal(t, "STORE_QUERY: query failed", err.Error())

	cause := errors.New("disk full")
	wrapped := Wrap(cause, ErrCodeStoreQuery, "query failed")
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(cause, ErrCodeRelayAPI, "send failed")

	assert.ErrorIs(t, wrapped, cause)
}

func TestWrapRetryable(t *testing.T) {
	err := WrapRetryable(errors.New("timeout"), ErrCodeRelayAPI, "send failed")
	assert.True(t, IsRetryable(err))

	permanent := Wrap(errors.New("bad input"), ErrCodeInvalidInput, "rejected")
	assert.False(t, IsRetryable(permanent))

	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeStoreQuery, GetCode(New(ErrCodeStoreQuery, "x")))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeRelayAPI, "send failed").
		WithContext("message_id", "msg-1").
		WithContext("attempt", 3)

	require.NotNil(t, err.Context)
	assert.Equal(t, "msg-1", err.Context["message_id"])
	assert.Equal(t, 3, err.Context["attempt"])
}

func TestGetUserMessage(t *testing.T) {
	err := New(ErrCodeStoreQuery, "sqlite broke").WithUserMessage("queue temporarily unavailable")
	assert.Equal(t, "queue temporarily unavailable", GetUserMessage(err))

	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("raw")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(New(ErrCodeStoreQuery, "no user message")))
}
