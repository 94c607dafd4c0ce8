package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}

func TestRecordWithoutTelemetryIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDispatch("GET", "ok", 12*time.Millisecond)
		RecordPacingRejection("POST")
		RecordSandboxRequest("/server", 201)
		RecordSandboxThrottled()
		RecordEnvelope("NOT_FOUND", 404, "/server/{id}")
		RecordPanic()
		SetServerStartTime(time.Now().Unix())
	})
}
