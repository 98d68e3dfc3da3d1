package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/MrEthical07/storeauth"
)

type fakeSource struct {
	snapshot storeauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() storeauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: storeauth.MetricsSnapshot{
			Counters:   map[storeauth.MetricID]uint64{},
			Histograms: map[storeauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: storeauth.MetricsSnapshot{
			Counters: map[storeauth.MetricID]uint64{
				storeauth.MetricSignInSuccess: 7,
			},
			Histograms: map[storeauth.MetricID][]uint64{
				storeauth.MetricProfileResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"storeauth_sign_in_success_total 7",
		"storeauth_sign_out_total 0",
		"storeauth_profile_resolve_latency_seconds_bucket{le=\"0.01\"} 1",
		"storeauth_profile_resolve_latency_seconds_bucket{le=\"+Inf\"} 36",
		"storeauth_profile_resolve_latency_seconds_count 36",
		"storeauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsDisabledHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: storeauth.MetricsSnapshot{
			Counters:   map[storeauth.MetricID]uint64{storeauth.MetricSignOut: 1},
			Histograms: map[storeauth.MetricID][]uint64{},
		},
	})
	if out := exp.Render(); strings.Contains(out, "latency_seconds") {
		t.Fatalf("expected no histogram, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: storeauth.MetricsSnapshot{
			Counters:   map[storeauth.MetricID]uint64{storeauth.MetricSignOut: 1},
			Histograms: map[storeauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExporterRegistersIntoCallerRegistry(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: storeauth.MetricsSnapshot{
			Counters: map[storeauth.MetricID]uint64{storeauth.MetricSignInSuccess: 3},
			Histograms: map[storeauth.MetricID][]uint64{
				storeauth.MetricProfileResolveLatency: {0, 1, 0, 0, 0, 0, 0, 1},
			},
		},
	})

	reg := prom.NewRegistry()
	if err := reg.Register(exp); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		if mf.GetName() == "storeauth_profile_resolve_latency_seconds" {
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 || len(h.GetBucket()) != 7 {
				t.Fatalf("unexpected histogram: %v", h)
			}
		}
	}
	for _, name := range []string{"storeauth_sign_in_success_total", "storeauth_profile_resolve_latency_seconds", "storeauth_audit_dropped_total"} {
		if !found[name] {
			t.Fatalf("expected family %s, got %v", name, found)
		}
	}
}

type liveSource struct{ m *storeauth.Metrics }

func (l liveSource) MetricsSnapshot() storeauth.MetricsSnapshot { return l.m.Snapshot() }
func (l liveSource) AuditDropped() uint64                       { return 0 }

func TestRenderFromLiveMetrics(t *testing.T) {
	m := storeauth.NewMetrics(storeauth.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(storeauth.MetricProfileFallback)
	m.Inc(storeauth.MetricProfileFallback)
	m.Observe(storeauth.MetricProfileResolveLatency, 700*time.Millisecond)

	out := NewExporterFromSource(liveSource{m: m}).Render()
	if !strings.Contains(out, "storeauth_profile_fallback_total 2") {
		t.Fatalf("expected fallback counter, got:\n%s", out)
	}
	if !strings.Contains(out, "storeauth_profile_resolve_latency_seconds_bucket{le=\"0.5\"} 0") ||
		!strings.Contains(out, "storeauth_profile_resolve_latency_seconds_bucket{le=\"1\"} 1") {
		t.Fatalf("expected 700ms sample in the 1s bucket, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: storeauth.MetricsSnapshot{
			Counters: map[storeauth.MetricID]uint64{
				storeauth.MetricSignInSuccess:    1000,
				storeauth.MetricSignInFailure:    40,
				storeauth.MetricProfileResolved:  900,
				storeauth.MetricProfileFallback:  12,
				storeauth.MetricSessionCleared:   300,
				storeauth.MetricBootstrapTimeout: 2,
				storeauth.MetricEventReceived:    4000,
			},
			Histograms: map[storeauth.MetricID][]uint64{
				storeauth.MetricProfileResolveLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
