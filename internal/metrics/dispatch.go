package metrics

import (
	"time"

	"github.com/onecloud/onecloud/internal/observability"
)

// Dispatch metric names
const (
	DispatchTotal         = "onecloud_dispatch_total"
	DispatchDuration      = "onecloud_dispatch_duration_ms"
	PacingRejectionsTotal = "onecloud_pacing_rejections_total"
	SandboxRequestsTotal  = "onecloud_sandbox_requests_total"
	SandboxThrottledTotal = "onecloud_sandbox_throttled_total"
	SandboxErrorsTotal    = "onecloud_sandbox_errors_total"
	SandboxPanicsTotal    = "onecloud_sandbox_panics_total"
	ServerStartTime       = "app_server_start_time_seconds"
)

// RecordDispatch records a finished dispatch. outcome is "ok" or the error kind.
func RecordDispatch(verb, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		DispatchTotal,
		1,
		map[string]string{
			"verb":    verb,
			"outcome": outcome,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		DispatchDuration,
		duration,
		map[string]string{
			"verb": verb,
		},
	)
}

// RecordPacingRejection counts a dispatch refused by the pacer.
func RecordPacingRejection(verb string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PacingRejectionsTotal,
			1,
			map[string]string{"verb": verb},
		)
	}
}

// RecordSandboxRequest counts a request served by the sandbox API.
func RecordSandboxRequest(route string, status int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SandboxRequestsTotal,
			1,
			map[string]string{
				"route":  route,
				"status": statusClass(status),
			},
		)
	}
}

// RecordSandboxThrottled counts a sandbox request refused with 429.
func RecordSandboxThrottled() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(SandboxThrottledTotal, 1, nil)
	}
}

// RecordEnvelope counts an error envelope written by the sandbox server.
// route is the matched chi pattern so ids do not explode label cardinality.
func RecordEnvelope(code string, status int, route string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SandboxErrorsTotal,
			1,
			map[string]string{
				"error_code": code,
				"status":     statusClass(status),
				"route":      route,
			},
		)
	}
}

// RecordPanic counts a handler panic caught by the recovery middleware.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(SandboxPanicsTotal, 1, nil)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
