package sessionguard

import (
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricVerifySuccess)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricVerifySuccess)
	}
}

// The verify path bumps a cache counter and a result counter per request.
var verifyHotMetricIDs = [...]MetricID{
	MetricCacheHit,
	MetricVerifySuccess,
	MetricCacheMiss,
	MetricVerifySuccess,
	MetricRateLimitAllowed,
	MetricVerifyRevoked,
}

func BenchmarkMetricsIncVerifyMixParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(verifyHotMetricIDs[idx])
			idx = (idx + 1) % len(verifyHotMetricIDs)
		}
	})
}

func BenchmarkMetricsObserveParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 3 * time.Millisecond
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
		}
	})
}
