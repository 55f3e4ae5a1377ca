package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"relayq/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQueue counts SyncQueue and CleanupOldSynced invocations.
type stubQueue struct {
	QueueService

	mu       sync.Mutex
	syncs    int
	cleanups int
	syncErr  error
}

func (q *stubQueue) SyncQueue(ctx context.Context) (*SyncResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.syncs++
	if q.syncErr != nil {
		return nil, q.syncErr
	}
	return &SyncResult{}, nil
}

func (q *stubQueue) CleanupOldSynced(ctx context.Context, retentionDays int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cleanups++
	return nil
}

func (q *stubQueue) syncCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.syncs
}

func TestSupervisor_OnlineEventTriggersSync(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())
	sup := NewSupervisor(queue, monitor, time.Hour, 30, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	defer sup.Stop()

	monitor.SetOnline(true, "test")

	require.Eventually(t, func() bool {
		return queue.syncCount() == 1
	}, time.Second, time.Millisecond)
}

func TestSupervisor_OfflineEventDoesNotSync(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())
	sup := NewSupervisor(queue, monitor, time.Hour, 30, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	defer sup.Stop()

	monitor.SetOnline(false, "test")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, queue.syncCount())
}

func TestSupervisor_PeriodicResyncWhileOnline(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())
	sup := NewSupervisor(queue, monitor, 10*time.Millisecond, 30, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	defer sup.Stop()

	monitor.SetOnline(true, "test")

	// One sync from the transition plus at least one from the ticker.
	require.Eventually(t, func() bool {
		return queue.syncCount() >= 2
	}, time.Second, time.Millisecond)
}

func TestSupervisor_NoResyncWhileOffline(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())
	sup := NewSupervisor(queue, monitor, 5*time.Millisecond, 30, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	defer sup.Stop()

	monitor.SetOnline(false, "test")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, queue.syncCount())
}

func TestSupervisor_SyncInProgressIsNotAnError(t *testing.T) {
	queue := &stubQueue{syncErr: ErrSyncInProgress}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())
	sup := NewSupervisor(queue, monitor, time.Hour, 30, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	monitor.SetOnline(true, "test")

	require.Eventually(t, func() bool {
		return queue.syncCount() == 1
	}, time.Second, time.Millisecond)

	sup.Stop()
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())
	sup := NewSupervisor(queue, monitor, time.Hour, 30, testLogger())

	sup.Start(context.Background())
	sup.Stop()
	sup.Stop()
}

func TestSupervisor_DefaultsApplied(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())

	sup := NewSupervisor(queue, monitor, 0, 0, testLogger())
	assert.Equal(t, 60*time.Second, sup.resyncEvery)
	assert.Equal(t, 30, sup.retentionDays)
}

// Compile-time check that the real service still satisfies the
// interface the supervisor drives.
var _ QueueService = (*queueService)(nil)

// Guard against config regressions: the supervisor passes the queue
// config retention through unchanged.
func TestSupervisor_RetentionFromConfig(t *testing.T) {
	queue := &stubQueue{}
	monitor := NewConnectivityMonitor(&fakeChecker{}, time.Minute, testLogger())

	cfg := models.QueueConfig{ResyncIntervalSec: 120}
	sup := NewSupervisor(queue, monitor, time.Duration(cfg.ResyncIntervalSec)*time.Second, 7, testLogger())

	assert.Equal(t, 2*time.Minute, sup.resyncEvery)
	assert.Equal(t, 7, sup.retentionDays)
}
