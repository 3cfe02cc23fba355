package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMonitor(p Prober) *Monitor {
	return NewMonitor(p, 10*time.Millisecond, time.Second, logging.NewNop())
}

func online(context.Context) error  { return nil }
func offline(context.Context) error { return ErrUnavailable }

func TestMonitor_StartTakesInitialState(t *testing.T) {
	m := newMonitor(ProberFunc(online))
	assert.True(t, m.Start(context.Background()))
	assert.True(t, m.Online())
	assert.False(t, m.WasOffline())

	select {
	case <-m.Reconnected():
		t.Fatal("initial state must not count as reconnection")
	default:
	}

	m = newMonitor(ProberFunc(offline))
	assert.False(t, m.Start(context.Background()))
	assert.False(t, m.Online())
}

func TestMonitor_OfflineToOnlineSetsStickyFlag(t *testing.T) {
	m := newMonitor(ProberFunc(offline))

	m.Set(false)
	assert.False(t, m.WasOffline())

	m.Set(true)
	assert.True(t, m.Online())
	assert.True(t, m.WasOffline())

	// stays set across further observations until acknowledged
	m.Set(true)
	m.Set(false)
	assert.True(t, m.WasOffline())

	m.Acknowledge()
	assert.False(t, m.WasOffline())
}

func TestMonitor_ReconnectedIsCoalesced(t *testing.T) {
	m := newMonitor(ProberFunc(offline))

	m.Set(true)
	m.Set(false)
	m.Set(true)

	select {
	case <-m.Reconnected():
	default:
		t.Fatal("expected a reconnection event")
	}
	select {
	case <-m.Reconnected():
		t.Fatal("events must be coalesced while nobody listens")
	default:
	}
}

func TestMonitor_OnlineToOfflineEmitsNothing(t *testing.T) {
	m := newMonitor(ProberFunc(online))
	m.Start(context.Background())

	m.Set(false)
	assert.False(t, m.Online())
	assert.False(t, m.WasOffline())
	select {
	case <-m.Reconnected():
		t.Fatal("going offline must not emit")
	default:
	}
}

func TestMonitor_CheckAppliesProbe(t *testing.T) {
	var up atomic.Bool
	m := newMonitor(ProberFunc(func(context.Context) error {
		if up.Load() {
			return nil
		}
		return errors.New("dial tcp: connection refused")
	}))

	assert.False(t, m.Check(context.Background()))
	up.Store(true)
	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.WasOffline())
}

func TestMonitor_CheckUsesProbeTimeout(t *testing.T) {
	m := NewMonitor(ProberFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), time.Second, 10*time.Millisecond, logging.NewNop())

	start := time.Now()
	assert.False(t, m.Check(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestMonitor_RunPollsUntilCancelled(t *testing.T) {
	var up atomic.Bool
	var calls atomic.Int32
	m := newMonitor(ProberFunc(func(context.Context) error {
		calls.Add(1)
		if up.Load() {
			return nil
		}
		return ErrUnavailable
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	up.Store(true)
	select {
	case <-m.Reconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnection observed")
	}
	require.True(t, m.Online())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Positive(t, calls.Load())
}
