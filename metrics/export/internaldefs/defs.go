package internaldefs

import (
	"github.com/MrEthical07/sessionguard"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export. Values are seconds.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful logins."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Failed logins."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: sessionguard.MetricRefreshFailure, Name: "sessionguard_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: sessionguard.MetricRefreshRaceLost, Name: "sessionguard_refresh_race_lost_total", Help: "Refreshes of an already consumed token."},
	{ID: sessionguard.MetricLogoutSuccess, Name: "sessionguard_logout_success_total", Help: "Successful logouts."},
	{ID: sessionguard.MetricLogoutFailure, Name: "sessionguard_logout_failure_total", Help: "Failed logouts."},
	{ID: sessionguard.MetricVerifySuccess, Name: "sessionguard_verify_success_total", Help: "Access tokens accepted."},
	{ID: sessionguard.MetricVerifyExpired, Name: "sessionguard_verify_expired_total", Help: "Access tokens rejected as expired."},
	{ID: sessionguard.MetricVerifyMalformed, Name: "sessionguard_verify_malformed_total", Help: "Access tokens rejected as malformed."},
	{ID: sessionguard.MetricVerifyRevoked, Name: "sessionguard_verify_revoked_total", Help: "Access tokens rejected as revoked."},
	{ID: sessionguard.MetricVerifyStoreUnavailable, Name: "sessionguard_verify_store_unavailable_total", Help: "Access tokens rejected because the ledger was unreachable."},
	{ID: sessionguard.MetricCacheHit, Name: "sessionguard_cache_hit_total", Help: "Verification cache hits."},
	{ID: sessionguard.MetricCacheMiss, Name: "sessionguard_cache_miss_total", Help: "Verification cache misses."},
	{ID: sessionguard.MetricRateLimitAllowed, Name: "sessionguard_rate_limit_allowed_total", Help: "Requests admitted by the rate limiter."},
	{ID: sessionguard.MetricRateLimitRejected, Name: "sessionguard_rate_limit_rejected_total", Help: "Requests rejected by the rate limiter."},
	{ID: sessionguard.MetricStoreRetry, Name: "sessionguard_store_retry_total", Help: "Revocation ledger retries."},
	{ID: sessionguard.MetricStoreUnavailable, Name: "sessionguard_store_unavailable_total", Help: "Operations failed closed on ledger outage."},
}

var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricValidateLatency, Name: "sessionguard_verify_latency_seconds", Help: "Access token verification latency."},
}

const (
	AuditDroppedName = "sessionguard_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped on dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds; the engine
// keeps one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1}

// HistogramBucketLabels renders every bound, +Inf included, the way
// Prometheus writes the le label.
var HistogramBucketLabels = []string{"0.001", "0.0025", "0.005", "0.01", "0.025", "0.05", "0.1", "+Inf"}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals; the last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
