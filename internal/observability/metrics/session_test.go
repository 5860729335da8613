package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewRecorderMetrics(registry)
	require.NoError(t, err)

	_, err = NewRecorderMetrics(registry)
	assert.Error(t, err, "duplicate registration must fail")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("idle")))
}

func TestRecorderMetricsSetStateIsExclusive(t *testing.T) {
	m, err := NewRecorderMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetState("paused")

	expected := `
# HELP seamrec_session_state Current session state (1 for the active state, 0 otherwise)
# TYPE seamrec_session_state gauge
seamrec_session_state{state="active"} 0
seamrec_session_state{state="finalizing"} 0
seamrec_session_state{state="idle"} 0
seamrec_session_state{state="paused"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.SessionState, strings.NewReader(expected)))
}

func TestRecorderMetricsCounters(t *testing.T) {
	m, err := NewRecorderMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordSegment("file")
	m.RecordSegment("file")
	m.RecordSegment("silence")
	m.RecordSilence(3)
	m.RecordSilence(-1)
	m.RecordInterruption("call")
	m.AddCapturedBytes(128000)
	m.AddDroppedBytes(4)
	m.AddDroppedBytes(0)
	m.RecordOperation("stop", StatusSuccess)
	m.RecordError("stop", "segment-read")
	m.RecordDuration("compose", 0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Segments.WithLabelValues("file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Segments.WithLabelValues("silence")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SilenceSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Interruptions.WithLabelValues("call")))
	assert.Equal(t, 128000.0, testutil.ToFloat64(m.CapturedBytes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DroppedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("stop", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("stop", "segment-read")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestTestRecorder(t *testing.T) {
	r := NewTestRecorder()

	r.RecordOperation("record", StatusSuccess)
	r.RecordOperation("record", StatusSuccess)
	r.RecordDuration("compose", 1.5)
	r.RecordError("pause", "capture")
	r.SetState("active")
	r.SetState("idle")
	r.RecordSegment("file")
	r.RecordInterruption("default")
	r.RecordSilence(2)
	r.AddCapturedBytes(10)
	r.AddDroppedBytes(3)

	assert.Equal(t, 2, r.GetOperationCount("record", StatusSuccess))
	assert.Equal(t, []float64{1.5}, r.GetDurations("compose"))
	assert.Nil(t, r.GetDurations("missing"))
	assert.Equal(t, 1, r.GetErrorCount("pause", "capture"))
	assert.Equal(t, []string{"active", "idle"}, r.States())
	assert.Equal(t, 1, r.SegmentCount("file"))
	assert.Equal(t, 1, r.InterruptionCount("default"))
	assert.Equal(t, 2.0, r.SilenceSeconds())
	assert.Equal(t, 10, r.CapturedBytes())
	assert.Equal(t, 3, r.DroppedBytes())

	r.Reset()
	assert.Zero(t, r.GetOperationCount("record", StatusSuccess))
	assert.Empty(t, r.States())
}
