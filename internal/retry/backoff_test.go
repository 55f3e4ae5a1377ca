package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNextDelay_DefaultSchedule(t *testing.T) {
	b := NewBackoff(DefaultBackoffConfig())

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 8000 * time.Millisecond},
		{5, 16000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, b.GetNextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestGetNextDelay_Pure(t *testing.T) {
	b := NewBackoff(DefaultBackoffConfig())

	first := b.GetNextDelay(3)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.GetNextDelay(3))
	}
}

func TestGetNextDelay_CappedAtMaxDelay(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  20,
	})

	assert.Equal(t, 10*time.Second, b.GetNextDelay(10))
	assert.Equal(t, 10*time.Second, b.GetNextDelay(15))
}

func TestGetNextDelay_AttemptBelowOne(t *testing.T) {
	b := NewBackoff(DefaultBackoffConfig())

	assert.Equal(t, time.Second, b.GetNextDelay(0))
	assert.Equal(t, time.Second, b.GetNextDelay(-3))
}

func TestGetNextDelay_CustomMultiplier(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     time.Minute,
		Multiplier:   3.0,
		MaxAttempts:  5,
	})

	assert.Equal(t, 500*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 1500*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 4500*time.Millisecond, b.GetNextDelay(3))
}

func TestGetNextDelay_JitterStaysInBounds(t *testing.T) {
	cfg := DefaultBackoffConfig()
	cfg.Jitter = true
	b := NewBackoff(cfg)

	for i := 0; i < 50; i++ {
		delay := b.GetNextDelay(2)
		assert.GreaterOrEqual(t, delay, 1500*time.Millisecond)
		assert.LessOrEqual(t, delay, 2500*time.Millisecond)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	})

	calls := 0
	wantErr := errors.New("persistent")
	err := b.Retry(context.Background(), func() error {
		calls++
		return wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithPredicate_StopsOnNonRetryable(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	calls := 0
	permanent := errors.New("permanent")
	err := b.RetryWithPredicate(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return false })

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error {
		return errors.New("always fails")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
