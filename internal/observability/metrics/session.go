package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Session states exported through the state gauge
var sessionStates = []string{"idle", "active", "paused", "finalizing"}

// RecorderMetrics contains all Prometheus metrics of the recording session
// and the segment concatenator.
type RecorderMetrics struct {
	SessionState      *prometheus.GaugeVec
	Segments          *prometheus.CounterVec
	SilenceSeconds    prometheus.Counter
	Interruptions     *prometheus.CounterVec
	CapturedBytes     prometheus.Counter
	DroppedBytes      prometheus.Counter
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Errors            *prometheus.CounterVec
	registry          *prometheus.Registry
}

var _ SessionRecorder = (*RecorderMetrics)(nil)

// NewRecorderMetrics creates and registers the session metrics in registry
func NewRecorderMetrics(registry *prometheus.Registry) (*RecorderMetrics, error) {
	m := &RecorderMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register recorder metrics: %w", err)
	}
	m.SetState("idle")
	return m, nil
}

func (m *RecorderMetrics) initMetrics() {
	m.SessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seamrec_session_state",
		Help: "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	m.Segments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seamrec_segments_total",
		Help: "Total number of segments appended to segment logs",
	}, []string{"kind"})

	m.SilenceSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seamrec_silence_seconds_total",
		Help: "Total seconds of silence inserted for call interruptions",
	})

	m.Interruptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seamrec_interruptions_total",
		Help: "Total number of pauses by cause",
	}, []string{"cause"})

	m.CapturedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seamrec_captured_bytes_total",
		Help: "Total PCM bytes written to segment files",
	})

	m.DroppedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seamrec_dropped_bytes_total",
		Help: "Total PCM bytes delivered while no segment was open",
	})

	m.Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seamrec_operations_total",
		Help: "Total number of session and composition operations",
	}, []string{"operation", "status"})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seamrec_operation_duration_seconds",
		Help:    "Duration of session and composition operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"operation"})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seamrec_errors_total",
		Help: "Total number of errors by operation and type",
	}, []string{"operation", "error_type"})
}

// Describe implements prometheus.Collector
func (m *RecorderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SessionState.Describe(ch)
	m.Segments.Describe(ch)
	m.SilenceSeconds.Describe(ch)
	m.Interruptions.Describe(ch)
	m.CapturedBytes.Describe(ch)
	m.DroppedBytes.Describe(ch)
	m.Operations.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.Errors.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *RecorderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SessionState.Collect(ch)
	m.Segments.Collect(ch)
	m.SilenceSeconds.Collect(ch)
	m.Interruptions.Collect(ch)
	m.CapturedBytes.Collect(ch)
	m.DroppedBytes.Collect(ch)
	m.Operations.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.Errors.Collect(ch)
}

// RecordOperation implements Recorder
func (m *RecorderMetrics) RecordOperation(operation, status string) {
	m.Operations.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *RecorderMetrics) RecordDuration(operation string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *RecorderMetrics) RecordError(operation, errorType string) {
	m.Errors.WithLabelValues(operation, errorType).Inc()
}

// SetState sets the gauge of state to 1 and every other state to 0
func (m *RecorderMetrics) SetState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

// RecordSegment implements SessionRecorder
func (m *RecorderMetrics) RecordSegment(kind string) {
	m.Segments.WithLabelValues(kind).Inc()
}

// RecordSilence implements SessionRecorder
func (m *RecorderMetrics) RecordSilence(seconds float64) {
	if seconds > 0 {
		m.SilenceSeconds.Add(seconds)
	}
}

// RecordInterruption implements SessionRecorder
func (m *RecorderMetrics) RecordInterruption(cause string) {
	m.Interruptions.WithLabelValues(cause).Inc()
}

// AddCapturedBytes implements SessionRecorder
func (m *RecorderMetrics) AddCapturedBytes(n int) {
	if n > 0 {
		m.CapturedBytes.Add(float64(n))
	}
}

// AddDroppedBytes implements SessionRecorder
func (m *RecorderMetrics) AddDroppedBytes(n int) {
	if n > 0 {
		m.DroppedBytes.Add(float64(n))
	}
}
