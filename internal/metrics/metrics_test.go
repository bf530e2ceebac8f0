package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersUseLabels(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.IncrementRecorded("in", "acme")
	m.IncrementRecorded("in", "acme")
	m.IncrementRecorded("out", "acme")
	m.IncrementMissedOut("acme")
	m.IncrementRetry("conflict")
	m.IncrementPublishFailure("PUNCH_RECORDED")
	m.IncrementMessage("export", "done")
	m.ObservePunchLatency(10 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PunchesRecorded.WithLabelValues("in", "acme")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PunchesRecorded.WithLabelValues("out", "acme")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MissedOutSynthesized.WithLabelValues("acme")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PunchRetries.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues("PUNCH_RECORDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("export", "done")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRecorded("in", "acme")
		m.IncrementFailure("conflict")
		m.ObservePunchLatency(time.Second)
		m.IncrementMessage("notify", "retry")
	})
}
