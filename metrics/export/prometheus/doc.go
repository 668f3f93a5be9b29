// Package prometheus exposes engine metrics through a prometheus.Collector.
//
// [NewCollector] reads [sessionguard.Engine.MetricsSnapshot] on every scrape
// and emits sessionguard_*_total counters, the
// sessionguard_verify_latency_seconds histogram and the audit drop counter.
// It never touches the global registry and never mutates engine state.
package prometheus
