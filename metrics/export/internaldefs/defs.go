package internaldefs

import (
	novels "github.com/zxckotee/novels-sub001"
)

// CounterDef names one session counter.
type CounterDef struct {
	ID   novels.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   novels.MetricID
	Name string
	Help string
}

// Dropped audit events counter.
const (
	AuditDroppedName = "novels_audit_dropped_total"
	AuditDroppedHelp = "Session audit events dropped because the dispatcher queue was full."
)

var CounterDefs = []CounterDef{
	{ID: novels.MetricLogin, Name: "novels_session_login_total", Help: "Successful sign-ins (login and register)."},
	{ID: novels.MetricLoginFailure, Name: "novels_session_login_failure_total", Help: "Rejected sign-in attempts."},
	{ID: novels.MetricLogout, Name: "novels_session_logout_total", Help: "User-initiated logouts."},
	{ID: novels.MetricUnauthorizedLogout, Name: "novels_session_unauthorized_logout_total", Help: "Logouts forced by a failed token refresh."},
	{ID: novels.MetricRefreshSuccess, Name: "novels_session_refresh_success_total", Help: "Access tokens renewed."},
	{ID: novels.MetricRefreshFailure, Name: "novels_session_refresh_failure_total", Help: "Token refreshes the API rejected."},
	{ID: novels.MetricHydrationRestored, Name: "novels_session_hydration_restored_total", Help: "Hydrations that restored a stored session."},
	{ID: novels.MetricHydrationEmpty, Name: "novels_session_hydration_empty_total", Help: "Hydrations with no stored session."},
	{ID: novels.MetricHydrationCorrupt, Name: "novels_session_hydration_corrupt_total", Help: "Hydrations that discarded an unreadable record."},
	{ID: novels.MetricHydrationFailed, Name: "novels_session_hydration_failed_total", Help: "Hydrations whose storage read failed."},
	{ID: novels.MetricPersistWrite, Name: "novels_session_persist_write_total", Help: "Session records written to storage."},
	{ID: novels.MetricPersistFailure, Name: "novels_session_persist_failure_total", Help: "Session record writes that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: novels.MetricHydrationLatency, Name: "novels_session_hydration_seconds", Help: "Storage read latency during hydration."},
	{ID: novels.MetricPersistLatency, Name: "novels_session_persist_seconds", Help: "Storage write latency of session records."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = [7]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = [8]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
