package prometheus

import (
	"testing"

	"github.com/MrEthical07/sessionguard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectOnlyAuditDroppedWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters:   map[sessionguard.MetricID]uint64{},
			Histograms: map[sessionguard.MetricID][]uint64{},
		},
	})

	families := gather(t, c)
	if len(families) != 1 {
		t.Fatalf("expected only the audit drop counter, got %d families", len(families))
	}
	if _, ok := families["sessionguard_audit_dropped_total"]; !ok {
		t.Fatalf("missing audit drop counter: %v", families)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess:    7,
				sessionguard.MetricRefreshRaceLost: 15,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	families := gather(t, c)

	if got := families["sessionguard_login_success_total"].GetMetric()[0].GetCounter().GetValue(); got != 7 {
		t.Fatalf("login success = %v, want 7", got)
	}
	if got := families["sessionguard_refresh_race_lost_total"].GetMetric()[0].GetCounter().GetValue(); got != 15 {
		t.Fatalf("race lost = %v, want 15", got)
	}
	if got := families["sessionguard_audit_dropped_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("audit dropped = %v, want 2", got)
	}

	h := families["sessionguard_verify_latency_seconds"].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("sample count = %d, want 36", h.GetSampleCount())
	}
	buckets := h.GetBucket()
	if len(buckets) != 7 {
		t.Fatalf("expected 7 finite buckets, got %d", len(buckets))
	}
	if buckets[0].GetUpperBound() != 0.001 || buckets[0].GetCumulativeCount() != 1 {
		t.Fatalf("unexpected first bucket: %v", buckets[0])
	}
	if buckets[6].GetUpperBound() != 0.1 || buckets[6].GetCumulativeCount() != 28 {
		t.Fatalf("unexpected last finite bucket: %v", buckets[6])
	}
}

func TestCollectorLintsClean(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{sessionguard.MetricLoginSuccess: 1},
		},
	})

	problems, err := testutil.CollectAndLint(c)
	if err != nil {
		t.Fatalf("CollectAndLint failed: %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint problem on %s: %s", p.Metric, p.Text)
	}
}

func BenchmarkCollect(b *testing.B) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess:   1000,
				sessionguard.MetricLoginFailure:   40,
				sessionguard.MetricRefreshSuccess: 800,
				sessionguard.MetricVerifySuccess:  90000,
				sessionguard.MetricCacheHit:       85000,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Gather()
	}
}
