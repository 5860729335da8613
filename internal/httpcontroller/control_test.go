package httpcontroller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/observability"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

var testSettings = conf.HTTPSettings{Enabled: true, Listen: "127.0.0.1:0"}

// fakeSession records the calls made by the handlers
type fakeSession struct {
	mu        sync.Mutex
	state     string
	pauses    []recorder.Cause
	signals   []recorder.Signal
	recordErr error
	stopErr   error
	stopDelay time.Duration
	output    string
}

func (f *fakeSession) Record() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.state = "active"
	return nil
}

func (f *fakeSession) Pause(cause recorder.Cause) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, cause)
	f.state = "paused"
	return nil
}

func (f *fakeSession) Stop(ctx context.Context) error {
	if f.stopDelay > 0 {
		select {
		case <-time.After(f.stopDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	if f.state != "" && f.state != "idle" {
		f.output = "/tmp/out.wav"
	}
	f.state = "idle"
	return nil
}

func (f *fakeSession) HandleSignal(sig recorder.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
}

func (f *fakeSession) Status() recorder.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	if state == "" {
		state = "idle"
	}
	return recorder.Status{State: state, Recording: state == "active", LastOutput: f.output}
}

func newTestServer(t *testing.T, session Controller) *Server {
	t.Helper()
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	return New(testSettings, session, m.Handler(), time.Second)
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) ControlResult {
	t.Helper()
	var result ControlResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestControlEndpoints(t *testing.T) {
	session := &fakeSession{}
	s := newTestServer(t, session)

	rec := do(t, s, http.MethodPost, "/api/v1/record")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, ActionRecord, result.Action)
	assert.True(t, result.Status.Recording)
	assert.NotZero(t, result.Timestamp)

	rec = do(t, s, http.MethodPost, "/api/v1/pause?cause=call")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", decodeResult(t, rec).Status.State)
	assert.Equal(t, []recorder.Cause{recorder.CauseCall}, session.pauses)

	rec = do(t, s, http.MethodPost, "/api/v1/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeResult(t, rec)
	assert.Equal(t, "Saved /tmp/out.wav", result.Message)
	assert.Equal(t, "idle", result.Status.State)

	rec = do(t, s, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status recorder.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "/tmp/out.wav", status.LastOutput)
}

func TestPauseRejectsUnknownCause(t *testing.T) {
	session := &fakeSession{}
	s := newTestServer(t, session)

	rec := do(t, s, http.MethodPost, "/api/v1/pause?cause=meeting")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, session.pauses)
}

func TestRecordFailure(t *testing.T) {
	s := newTestServer(t, &fakeSession{recordErr: errors.NewStd("no device")})

	rec := do(t, s, http.MethodPost, "/api/v1/record")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no device", body.Error)
	assert.Equal(t, http.StatusInternalServerError, body.Code)
}

func TestStopWhileIdleReportsStopped(t *testing.T) {
	s := newTestServer(t, &fakeSession{output: "/tmp/previous.wav"})

	rec := do(t, s, http.MethodPost, "/api/v1/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, "Stopped", result.Message)
	assert.Equal(t, "/tmp/previous.wav", result.Status.LastOutput)
}

func TestStopTimeoutIsAccepted(t *testing.T) {
	session := &fakeSession{stopDelay: time.Minute}
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := New(testSettings, session, m.Handler(), 20*time.Millisecond)

	rec := do(t, s, http.MethodPost, "/api/v1/stop")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSignalEndpoint(t *testing.T) {
	tests := []struct {
		path string
		code int
		want recorder.Signal
	}{
		{"/api/v1/signals/call_began", http.StatusAccepted, recorder.SignalCallBegan},
		{"/api/v1/signals/hangup", http.StatusAccepted, recorder.SignalCallEnded},
		{"/api/v1/signals/appBackgrounded", http.StatusAccepted, recorder.SignalAppBackgrounded},
		{"/api/v1/signals/doorbell", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			session := &fakeSession{}
			s := newTestServer(t, session)

			rec := do(t, s, http.MethodPost, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			if tt.want != 0 {
				assert.Equal(t, []recorder.Signal{tt.want}, session.signals)
			} else {
				assert.Empty(t, session.signals)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeSession{})

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seamrec_session_state")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsRouteOptional(t *testing.T) {
	s := New(testSettings, &fakeSession{}, nil, time.Second)
	rec := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(testSettings, &fakeSession{}, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Echo.ListenerAddr() != nil }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
