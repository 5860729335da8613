package metrics

import (
	"sync"
)

// TestRecorder captures recorded metrics in memory for verification in tests
type TestRecorder struct {
	mu            sync.RWMutex
	operations    map[string]map[string]int // operation -> status -> count
	durations     map[string][]float64      // operation -> list of durations
	errors        map[string]map[string]int // operation -> errorType -> count
	states        []string
	segments      map[string]int
	interruptions map[string]int
	silence       float64
	captured      int
	dropped       int
}

var _ SessionRecorder = (*TestRecorder)(nil)

// NewTestRecorder creates a new test recorder instance
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations:    make(map[string]map[string]int),
		durations:     make(map[string][]float64),
		errors:        make(map[string]map[string]int),
		segments:      make(map[string]int),
		interruptions: make(map[string]int),
	}
}

func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.operations[operation] == nil {
		r.operations[operation] = make(map[string]int)
	}
	r.operations[operation][status]++
}

func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.durations[operation] = append(r.durations[operation], seconds)
}

func (r *TestRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.errors[operation] == nil {
		r.errors[operation] = make(map[string]int)
	}
	r.errors[operation][errorType]++
}

func (r *TestRecorder) SetState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *TestRecorder) RecordSegment(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[kind]++
}

func (r *TestRecorder) RecordSilence(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silence += seconds
}

func (r *TestRecorder) RecordInterruption(cause string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interruptions[cause]++
}

func (r *TestRecorder) AddCapturedBytes(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured += n
}

func (r *TestRecorder) AddDroppedBytes(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped += n
}

// GetOperationCount returns the count of a specific operation and status
func (r *TestRecorder) GetOperationCount(operation, status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if statusMap, ok := r.operations[operation]; ok {
		return statusMap[status]
	}
	return 0
}

// GetDurations returns a copy of the durations recorded for operation
func (r *TestRecorder) GetDurations(operation string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	durations := r.durations[operation]
	if durations == nil {
		return nil
	}
	result := make([]float64, len(durations))
	copy(result, durations)
	return result
}

// GetErrorCount returns the count of errors of errorType for operation
func (r *TestRecorder) GetErrorCount(operation, errorType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if typeMap, ok := r.errors[operation]; ok {
		return typeMap[errorType]
	}
	return 0
}

// States returns every state passed to SetState, in order
func (r *TestRecorder) States() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.states...)
}

// SegmentCount returns the number of segments recorded for kind
func (r *TestRecorder) SegmentCount(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.segments[kind]
}

// InterruptionCount returns the number of pauses recorded for cause
func (r *TestRecorder) InterruptionCount(cause string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interruptions[cause]
}

// SilenceSeconds returns the total recorded silence
func (r *TestRecorder) SilenceSeconds() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.silence
}

// CapturedBytes returns the total captured bytes
func (r *TestRecorder) CapturedBytes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.captured
}

// DroppedBytes returns the total dropped bytes
func (r *TestRecorder) DroppedBytes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Reset clears all recorded metrics
func (r *TestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.operations = make(map[string]map[string]int)
	r.durations = make(map[string][]float64)
	r.errors = make(map[string]map[string]int)
	r.segments = make(map[string]int)
	r.interruptions = make(map[string]int)
	r.states = nil
	r.silence = 0
	r.captured = 0
	r.dropped = 0
}
