// Package connectivity tracks whether the remote store is reachable.
//
// A Monitor holds the current online/offline state, a sticky WasOffline flag
// set whenever the state flips from offline to online, and a Reconnected
// channel that receives one value per such flip (coalesced when nobody is
// listening). Observations come from a Prober polled by Run or are pushed
// directly with Set.
package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/logging"
)

// ErrUnavailable is returned by probers when the remote store cannot be reached.
var ErrUnavailable = errors.New("remote store unavailable")

// Prober checks remote reachability. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	mu          sync.RWMutex
	online      bool
	wasOffline  bool
	reconnected chan struct{}
}

func NewMonitor(p Prober, interval, timeout time.Duration, log logging.Logger) *Monitor {
	return &Monitor{
		prober:      p,
		interval:    interval,
		timeout:     timeout,
		log:         log,
		reconnected: make(chan struct{}, 1),
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// WasOffline reports whether an offline period ended since the last Acknowledge.
func (m *Monitor) WasOffline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wasOffline
}

// Reconnected receives a value after each offline to online transition.
func (m *Monitor) Reconnected() <-chan struct{} {
	return m.reconnected
}

// Acknowledge clears WasOffline, typically after a successful sync.
func (m *Monitor) Acknowledge() {
	m.mu.Lock()
	m.wasOffline = false
	m.mu.Unlock()
}

// Set applies an observation.
func (m *Monitor) Set(online bool) {
	m.apply(context.Background(), online)
}

func (m *Monitor) apply(ctx context.Context, online bool) {
	m.mu.Lock()
	prev := m.online
	m.online = online
	if online && !prev {
		m.wasOffline = true
	}
	m.mu.Unlock()

	if online == prev {
		return
	}
	if online {
		m.log.Info(ctx, "switched to online mode")
		select {
		case m.reconnected <- struct{}{}:
		default:
		}
		return
	}
	m.log.Warn(ctx, "switched to offline mode")
}

// probe runs the prober under the per-probe timeout.
func (m *Monitor) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.prober.Probe(ctx)
}

// Check probes once and applies the result.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.probe(ctx)
	if err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
	}
	m.apply(ctx, err == nil)
	return err == nil
}

// Start takes the initial state from a single probe. It does not count as a
// reconnection.
func (m *Monitor) Start(ctx context.Context) bool {
	err := m.probe(ctx)
	m.mu.Lock()
	m.online = err == nil
	m.mu.Unlock()
	if err != nil {
		m.log.Warn(ctx, "starting in offline mode", "error", err)
	}
	return err == nil
}

// Run polls the prober until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
