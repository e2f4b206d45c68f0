// Package connectivity relays the host environment's reachability signal.
// It does no probing of its own: the host (or an admin endpoint) reports
// "became reachable" / "became unreachable" and the monitor fans the state
// out to subscribers and schedules the post-reconnect sync.
package connectivity

import (
	"context"
	"sync"
	"time"

	"ms-checkin/internal/logger"
)

type Monitor struct {
	mu             sync.Mutex
	reachable      bool
	lastTransition time.Time

	debounce  time.Duration
	syncTimer *time.Timer
	onStable  func()

	subs   []chan bool
	logger *logger.Logger
}

// NewMonitor starts from the given reachability state. debounce is how long
// a regained connection must hold before the sync trigger fires; it absorbs
// flapping links.
func NewMonitor(reachable bool, debounce time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		reachable:      reachable,
		lastTransition: time.Now(),
		debounce:       debounce,
		logger:         log,
	}
}

// Reachable reports the current state.
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reachable
}

// LastTransition reports when the state last changed.
func (m *Monitor) LastTransition() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTransition
}

// OnReachable registers the function invoked once per unreachable→reachable
// transition, after the debounce delay. Typically the sync engine's driver.
func (m *Monitor) OnReachable(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStable = fn
}

// Subscribe returns a channel receiving every state change until ctx ends.
func (m *Monitor) Subscribe(ctx context.Context) chan bool {
	ch := make(chan bool, 4)

	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	}()

	return ch
}

// SetReachable ingests a host connectivity signal. Repeated reports of the
// same state are ignored. A transition to reachable arms the debounced sync
// trigger; a transition back to unreachable before it fires disarms it, so
// a flapping link never races a half-started sync.
func (m *Monitor) SetReachable(reachable bool) {
	m.mu.Lock()

	if reachable == m.reachable {
		m.mu.Unlock()
		return
	}

	m.reachable = reachable
	m.lastTransition = time.Now()

	if m.syncTimer != nil {
		m.syncTimer.Stop()
		m.syncTimer = nil
	}

	if reachable && m.onStable != nil {
		m.syncTimer = time.AfterFunc(m.debounce, m.onStable)
	}

	subs := make([]chan bool, len(m.subs))
	copy(subs, m.subs)
	log := m.logger
	m.mu.Unlock()

	if log != nil {
		if reachable {
			log.Info("CONN", "Connection restored, sync scheduled")
		} else {
			log.Warn("CONN", "Connection lost, entering offline mode")
		}
	}

	for _, ch := range subs {
		// Non-blocking send so a slow subscriber cannot stall the relay.
		select {
		case ch <- reachable:
		default:
		}
	}
}
