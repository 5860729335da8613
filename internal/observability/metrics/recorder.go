// Package metrics provides custom Prometheus metrics for the recorder.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on this abstraction rather than concrete metric types.
type Recorder interface {
	// RecordOperation records an operation with its status ("success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// SessionRecorder extends Recorder with recording session gauges and counters
type SessionRecorder interface {
	Recorder

	// SetState marks state as the current session state
	SetState(state string)
	// RecordSegment counts a segment appended to the log, by kind
	RecordSegment(kind string)
	// RecordSilence adds synthesized interruption silence
	RecordSilence(seconds float64)
	// RecordInterruption counts a pause by cause
	RecordInterruption(cause string)
	// AddCapturedBytes counts bytes written to segment files
	AddCapturedBytes(n int)
	// AddDroppedBytes counts bytes delivered while not recording
	AddDroppedBytes(n int)
}

// Status values for RecordOperation
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NoopRecorder discards everything
type NoopRecorder struct{}

var _ SessionRecorder = NoopRecorder{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}
func (NoopRecorder) SetState(string)                {}
func (NoopRecorder) RecordSegment(string)           {}
func (NoopRecorder) RecordSilence(float64)          {}
func (NoopRecorder) RecordInterruption(string)      {}
func (NoopRecorder) AddCapturedBytes(int)           {}
func (NoopRecorder) AddDroppedBytes(int)            {}
