package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordAndSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/bookings", "GET", 200, 5*time.Millisecond)
	m.RecordRequest("/bookings", "GET", 200, 7*time.Millisecond)
	m.RecordError("/bookings", "POST", "VALIDATION_FAILED")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/bookings|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/bookings|POST|VALIDATION_FAILED"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/x", "GET", 200, time.Millisecond)
	m.RecordError("/x", "GET", "E")
	assert.Empty(t, m.Snapshot().Requests)
}
