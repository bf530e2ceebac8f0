package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for punch recording and the event workers.
type Metrics struct {
	// Real punches by label (in/out) and tenant
	PunchesRecorded *prometheus.CounterVec

	// Synthesized missed out-punches by tenant
	MissedOutSynthesized *prometheus.CounterVec

	// Recorder retries by reason (conflict, transient)
	PunchRetries *prometheus.CounterVec

	// Failed punches by error code
	PunchFailures *prometheus.CounterVec

	PunchLatency prometheus.Histogram

	// Events that could not be published after the records were stored
	PublishFailures *prometheus.CounterVec

	// Worker message outcomes by queue and result (done, retry, dropped)
	MessagesProcessed *prometheus.CounterVec
}

// New registers all metrics with the default Prometheus registry.
// Call it once per process.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PunchesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punch_recorded_total",
			Help: "Total real punches recorded by label and tenant",
		}, []string{"label", "tenant"}),

		MissedOutSynthesized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punch_missed_out_synthesized_total",
			Help: "Total missed out-punches backfilled by tenant",
		}, []string{"tenant"}),

		PunchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punch_retries_total",
			Help: "Total punch recording retries by reason",
		}, []string{"reason"}),

		PunchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punch_failures_total",
			Help: "Total failed punch attempts by error code",
		}, []string{"code"}),

		PunchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "punch_record_duration_seconds",
			Help:    "Duration of a punch from validation to stored records",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punch_event_publish_failures_total",
			Help: "Total punch events that could not be published by event type",
		}, []string{"event_type"}),

		MessagesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punch_worker_messages_total",
			Help: "Total queue messages handled by workers by queue and result",
		}, []string{"queue", "result"}),
	}
}

func (m *Metrics) IncrementRecorded(label, tenant string) {
	if m != nil {
		m.PunchesRecorded.WithLabelValues(label, tenant).Inc()
	}
}

func (m *Metrics) IncrementMissedOut(tenant string) {
	if m != nil {
		m.MissedOutSynthesized.WithLabelValues(tenant).Inc()
	}
}

func (m *Metrics) IncrementRetry(reason string) {
	if m != nil {
		m.PunchRetries.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementFailure(code string) {
	if m != nil {
		m.PunchFailures.WithLabelValues(code).Inc()
	}
}

// ObservePunchLatency records the total time spent recording one punch.
func (m *Metrics) ObservePunchLatency(d time.Duration) {
	if m != nil {
		m.PunchLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementPublishFailure(eventType string) {
	if m != nil {
		m.PublishFailures.WithLabelValues(eventType).Inc()
	}
}

// IncrementMessage records how a worker disposed of a queue message.
func (m *Metrics) IncrementMessage(queue, result string) {
	if m != nil {
		m.MessagesProcessed.WithLabelValues(queue, result).Inc()
	}
}
