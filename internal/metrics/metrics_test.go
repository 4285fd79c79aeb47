package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// value returns the value of the sample of family name whose labels include
// all of want.
func value(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, want)
	return 0
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PushEvent("tweets_update")
	m.PushEvent("tweets_update")
	m.PushEvent("connect")
	m.LoadStarted()
	m.LoadFinished(OutcomeCommitted, 0.2)
	m.LoadFinished(OutcomeStale, 0.1)
	m.SetConnected(true)
	m.SetViewSize(12)

	if v := value(t, reg, "dropwatch_push_events_total", map[string]string{"event": "tweets_update"}); v != 2 {
		t.Errorf("tweets_update events = %v, want 2", v)
	}
	if v := value(t, reg, "dropwatch_loads_started_total", nil); v != 1 {
		t.Errorf("loads started = %v, want 1", v)
	}
	if v := value(t, reg, "dropwatch_loads_total", map[string]string{"outcome": OutcomeStale}); v != 1 {
		t.Errorf("stale loads = %v, want 1", v)
	}
	if v := value(t, reg, "dropwatch_load_duration_seconds", nil); v != 2 {
		t.Errorf("duration samples = %v, want 2", v)
	}
	if v := value(t, reg, "dropwatch_push_connected", nil); v != 1 {
		t.Errorf("connected = %v, want 1", v)
	}
	if v := value(t, reg, "dropwatch_view_posts", nil); v != 12 {
		t.Errorf("view size = %v, want 12", v)
	}

	m.SetConnected(false)
	if v := value(t, reg, "dropwatch_push_connected", nil); v != 0 {
		t.Errorf("connected = %v, want 0", v)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// Must not panic.
	m.PushEvent("x")
	m.LoadStarted()
	m.LoadFinished(OutcomeFailed, 1)
	m.SetConnected(true)
	m.SetViewSize(3)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PushEvent("tweets_update")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `dropwatch_push_events_total{event="tweets_update"} 1`) {
		t.Errorf("exposition missing counter:\n%s", body)
	}
}
