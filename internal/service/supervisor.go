package service

import (
	"context"
	"sync"
	"time"

	"relayq/internal/constants"
	"relayq/internal/errors"

	"github.com/sirupsen/logrus"
)

// Supervisor drives the queue from the outside: it triggers a drain
// pass whenever connectivity comes back, re-drains on a fixed interval
// while online (so backed-off messages are picked up when due), and
// sweeps old delivered messages past the retention window.
type Supervisor struct {
	queue         QueueService
	monitor       *ConnectivityMonitor
	resyncEvery   time.Duration
	sweepEvery    time.Duration
	retentionDays int
	logger        *errors.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	doneWg   sync.WaitGroup
}

func NewSupervisor(queue QueueService, monitor *ConnectivityMonitor, resyncInterval time.Duration, retentionDays int, logger *logrus.Logger) *Supervisor {
	if resyncInterval <= 0 {
		resyncInterval = constants.DefaultResyncIntervalSec * time.Second
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &Supervisor{
		queue:         queue,
		monitor:       monitor,
		resyncEvery:   resyncInterval,
		sweepEvery:    constants.DefaultRetentionSweepHours * time.Hour,
		retentionDays: retentionDays,
		logger:        errors.WrapLogger(logger),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the supervision loop.
func (s *Supervisor) Start(ctx context.Context) {
	s.doneWg.Add(1)
	go func() {
		defer s.doneWg.Done()
		s.run(ctx)
	}()
}

// Stop terminates the loop and waits for it to exit.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.doneWg.Wait()
}

func (s *Supervisor) run(ctx context.Context) {
	resync := time.NewTicker(s.resyncEvery)
	defer resync.Stop()

	sweep := time.NewTicker(s.sweepEvery)
	defer sweep.Stop()

	s.logger.Logger.WithFields(logrus.Fields{
		"resync_interval_sec": int(s.resyncEvery.Seconds()),
		"retention_days":      s.retentionDays,
	}).Info("Queue supervisor started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case event := <-s.monitor.Events():
			if event.Online {
				s.logger.Logger.WithField("event_source", event.Source).Info("Connectivity restored, draining queue")
				s.sync(ctx)
			}
		case <-resync.C:
			if s.monitor.IsOnline() {
				s.sync(ctx)
			}
		case <-sweep.C:
			if err := s.queue.CleanupOldSynced(ctx, s.retentionDays); err != nil {
				s.logger.LogError(err, "Retention sweep failed")
			}
		}
	}
}

func (s *Supervisor) sync(ctx context.Context) {
	result, err := s.queue.SyncQueue(ctx)
	if err != nil {
		if err == ErrSyncInProgress {
			s.logger.Logger.Debug("Drain pass already running, skipping trigger")
			return
		}
		s.logger.LogRetryableError(err, "Queue drain pass failed")
		return
	}

	if result.Attempted > 0 {
		s.logger.Logger.WithFields(logrus.Fields{
			"sent":   result.Sent,
			"failed": result.Failed,
		}).Debug("Drain pass finished")
	}
}
