package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/rolegate"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot rolegate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() rolegate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: rolegate.MetricsSnapshot{
			Counters: map[rolegate.MetricID]uint64{
				rolegate.MetricSignInSuccess:            7,
				rolegate.MetricRevalidateRequiresLogout: 3,
			},
			Histograms: map[rolegate.MetricID][]uint64{
				rolegate.MetricRevalidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			Sums: map[rolegate.MetricID]time.Duration{
				rolegate.MetricRevalidateLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	}
}

func TestCollectorGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollectorFromSource(sampleSource())); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := map[string]float64{}
	var hist struct {
		count uint64
		sum   float64
		first uint64
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				hist.count = h.GetSampleCount()
				hist.sum = h.GetSampleSum()
				hist.first = h.GetBucket()[0].GetCumulativeCount()
			}
		}
	}

	if byName["rolegate_sign_in_success_total"] != 7 {
		t.Fatalf("sign-in counter: %v", byName["rolegate_sign_in_success_total"])
	}
	if byName["rolegate_revalidate_requires_logout_total"] != 3 {
		t.Fatal("requires-logout counter missing")
	}
	if byName["rolegate_audit_dropped_total"] != 2 {
		t.Fatal("audit dropped counter missing")
	}
	if hist.count != 36 || hist.first != 1 || hist.sum != 1.5 {
		t.Fatalf("unexpected histogram %+v", hist)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	h, err := Handler(NewCollectorFromSource(sampleSource()))
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `rolegate_revalidate_latency_seconds_bucket{le="+Inf"} 36`) {
		t.Fatalf("expected +Inf bucket in output, got:\n%s", body)
	}
}

func TestCollectorOverEngine(t *testing.T) {
	var e *rolegate.Engine
	c := NewCollector(e)
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather over unbuilt engine: %v", err)
	}
}
