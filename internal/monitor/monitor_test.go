package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTransport struct {
	connected atomic.Bool
}

func (f *fakeTransport) IsConnected() bool { return f.connected.Load() }

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestTransitions(t *testing.T) {
	m := New(&fakeTransport{}, time.Hour)
	var log stateLog
	m.OnChange(log.record)

	if m.State() != Offline {
		t.Fatalf("initial state = %v, want offline", m.State())
	}

	m.Connected()
	if !m.Online() {
		t.Error("expected online after connect")
	}
	m.Connected()
	m.Disconnected()
	if m.Online() {
		t.Error("expected offline after disconnect")
	}

	// Observer fires on every event, including repeats.
	want := []State{Online, Online, Offline}
	got := log.get()
	if len(got) != len(want) {
		t.Fatalf("observer saw %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observer[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		online    bool
		transport bool
		forced    bool
		want      State
	}{
		{"online and connected", true, true, false, Online},
		{"online but transport down", true, false, true, Offline},
		{"offline and transport down", false, false, false, Offline},
		{"offline but transport up", false, true, false, Offline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			tr.connected.Store(tt.transport)
			m := New(tr, time.Hour)
			if tt.online {
				m.Connected()
			}

			if forced := m.Check(); forced != tt.forced {
				t.Errorf("Check() = %v, want %v", forced, tt.forced)
			}
			if m.State() != tt.want {
				t.Errorf("state = %v, want %v", m.State(), tt.want)
			}
		})
	}
}

func TestWatchdogForcesOffline(t *testing.T) {
	tr := &fakeTransport{}
	tr.connected.Store(true)

	m := New(tr, 5*time.Millisecond)
	changed := make(chan State, 8)
	m.OnChange(func(s State) { changed <- s })

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	defer func() { cancel(); m.Wait() }()

	m.Connected()
	<-changed

	// A missed disconnect: the transport drops without an event.
	tr.connected.Store(false)

	select {
	case s := <-changed:
		if s != Offline {
			t.Errorf("watchdog transitioned to %v, want offline", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never forced offline")
	}
}

func TestWaitAfterCancel(t *testing.T) {
	m := New(&fakeTransport{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestDefaultInterval(t *testing.T) {
	if m := New(&fakeTransport{}, 0); m.interval != DefaultWatchdogInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultWatchdogInterval)
	}
}

func TestStateString(t *testing.T) {
	if Online.String() != "online" || Offline.String() != "offline" {
		t.Errorf("unexpected strings %q %q", Online, Offline)
	}
}
