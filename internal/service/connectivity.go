package service

import (
	"context"
	"sync"
	"time"

	"relayq/internal/constants"
	"relayq/internal/errors"
	"relayq/internal/metrics"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// ConnectivityEvent is emitted on every online/offline transition.
type ConnectivityEvent struct {
	Online bool
	Source string
	At     time.Time
}

// HealthChecker probes the relay server; nil means reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectivityMonitor tracks relay reachability and emits transition
// events. State changes come from two sources: the periodic HTTP
// health probe and, when enabled, the realtime websocket listener.
// Only transitions are emitted; repeated reports of the same state
// are absorbed.
type ConnectivityMonitor struct {
	checker  HealthChecker
	interval time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	online bool
	known  bool

	events chan ConnectivityEvent
	stopCh chan struct{}
	doneWg sync.WaitGroup
}

func NewConnectivityMonitor(checker HealthChecker, probeInterval time.Duration, logger *logrus.Logger) *ConnectivityMonitor {
	if probeInterval <= 0 {
		probeInterval = constants.DefaultProbeIntervalSec * time.Second
	}
	return &ConnectivityMonitor{
		checker:  checker,
		interval: probeInterval,
		logger:   logger,
		events:   make(chan ConnectivityEvent, constants.ConnectivityChannelSize),
		stopCh:   make(chan struct{}),
	}
}

// Events returns the transition stream. The channel is buffered; if
// the consumer falls behind, older transitions are dropped in favor
// of the most recent state.
func (m *ConnectivityMonitor) Events() <-chan ConnectivityEvent {
	return m.events
}

// IsOnline reports the last observed state. Before the first probe
// completes the state is unknown and reported as offline.
func (m *ConnectivityMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known && m.online
}

// Start launches the probe loop. The first probe runs immediately so
// startup does not wait a full interval to learn the state.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.doneWg.Add(1)
	go func() {
		defer m.doneWg.Done()

		m.probe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (m *ConnectivityMonitor) Stop() {
	close(m.stopCh)
	m.doneWg.Wait()
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.checker.HealthCheck(probeCtx)
	if err != nil && ctx.Err() != nil {
		return
	}
	m.SetOnline(err == nil, "probe")
}

// SetOnline records an observation from any source and emits an event
// if the state changed. Safe for concurrent use.
func (m *ConnectivityMonitor) SetOnline(online bool, source string) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	m.mu.Unlock()

	if !changed {
		return
	}

	gauge := 0.0
	if online {
		gauge = 1.0
	}
	metrics.SetGauge("connectivity_online", gauge, nil, "1 when the relay server is reachable")

	entry := m.logger.WithFields(logrus.Fields{
		"online":       online,
		"event_source": source,
	})
	if online {
		entry.Info("Relay server is reachable")
	} else {
		entry.Warn("Relay server is unreachable")
	}

	event := ConnectivityEvent{Online: online, Source: source, At: time.Now()}
	select {
	case m.events <- event:
	default:
		// Drop the oldest buffered event so the latest state wins.
		select {
		case <-m.events:
		default:
		}
		select {
		case m.events <- event:
		default:
		}
	}
}

// RealtimeListener holds a websocket connection to the relay server's
// realtime endpoint. A live connection is treated as an online signal;
// a read error or failed dial as offline. It reconnects with a fixed
// delay until stopped.
type RealtimeListener struct {
	url       string
	authToken string
	monitor   *ConnectivityMonitor
	logger    *errors.Logger
	reconnect time.Duration

	stopCh chan struct{}
	doneWg sync.WaitGroup
}

func NewRealtimeListener(url, authToken string, monitor *ConnectivityMonitor, logger *logrus.Logger) *RealtimeListener {
	return &RealtimeListener{
		url:       url,
		authToken: authToken,
		monitor:   monitor,
		logger:    errors.WrapLogger(logger),
		reconnect: constants.DefaultWebsocketReconnectSec * time.Second,
		stopCh:    make(chan struct{}),
	}
}

func (l *RealtimeListener) Start(ctx context.Context) {
	l.doneWg.Add(1)
	go func() {
		defer l.doneWg.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			default:
			}

			l.runOnce(ctx)

			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-time.After(l.reconnect):
			}
		}
	}()
}

func (l *RealtimeListener) Stop() {
	close(l.stopCh)
	l.doneWg.Wait()
}

// runOnce dials the realtime endpoint and reads until the connection
// drops. Message payloads are presence pings and are discarded; only
// connection liveness matters here.
func (l *RealtimeListener) runOnce(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, l.reconnect)
	opts := &websocket.DialOptions{}
	if l.authToken != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + l.authToken},
		}
	}

	conn, _, err := websocket.Dial(dialCtx, l.url, opts)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			l.logger.LogWarn(
				errors.WrapRetryable(err, errors.ErrCodeConnectivity, "realtime dial failed"),
				"Realtime connection failed",
				logrus.Fields{LogFieldURL: l.url},
			)
			l.monitor.SetOnline(false, "realtime")
		}
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	l.monitor.SetOnline(true, "realtime")
	metrics.IncrementCounter("realtime_connections", nil, "Successful realtime websocket connections")

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if ctx.Err() == nil {
				l.monitor.SetOnline(false, "realtime")
			}
			return
		}
	}
}
