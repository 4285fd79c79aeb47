// Package monitor tracks whether the push channel is live.
//
// State changes come from the transport's connect and disconnect events. A
// watchdog re-checks the transport periodically and forces Offline if a
// disconnect was missed. The monitor never reconnects; that is the
// transport's job.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/dropwatch/internal/logging"
)

// DefaultWatchdogInterval is the period between transport checks.
const DefaultWatchdogInterval = 30 * time.Second

// State is the connection state.
type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Transport is the authoritative source for connectivity.
type Transport interface {
	IsConnected() bool
}

// Observer is called after every connect, disconnect or forced transition.
// It receives the new state and must not block.
type Observer func(State)

// Monitor holds the connection state.
type Monitor struct {
	transport Transport
	interval  time.Duration
	log       *log.Logger

	mu       sync.Mutex
	state    State
	observer Observer

	wg sync.WaitGroup
}

// New creates a Monitor in the Offline state.
func New(t Transport, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	return &Monitor{
		transport: t,
		interval:  interval,
		log:       logging.WithPrefix("monitor"),
	}
}

// OnChange sets the observer. Replaces any previous one.
func (m *Monitor) OnChange(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the state is Online.
func (m *Monitor) Online() bool {
	return m.State() == Online
}

// Connected handles a connect event.
func (m *Monitor) Connected() {
	m.set(Online, "connect")
}

// Disconnected handles a disconnect event.
func (m *Monitor) Disconnected() {
	m.set(Offline, "disconnect")
}

// Check runs one watchdog pass. Returns true if it forced Offline.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	if m.state != Online || m.transport.IsConnected() {
		m.mu.Unlock()
		return false
	}
	m.state = Offline
	fn := m.observer
	m.mu.Unlock()

	m.log.Warn("transport reports disconnected while online, forcing offline")
	if fn != nil {
		fn(Offline)
	}
	return true
}

// Start runs the watchdog until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check()
			}
		}
	}()
}

// Wait blocks until the watchdog exits.
// Call after canceling the context passed to Start.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) set(s State, cause string) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	fn := m.observer
	m.mu.Unlock()

	if prev != s {
		m.log.Info("connection state changed", "from", prev, "to", s, "cause", cause)
	}
	if fn != nil {
		fn(s)
	}
}
