package record

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

type stubSession struct {
	records int
	pauses  []recorder.Cause
	err     error
}

func (s *stubSession) Record() error {
	s.records++
	return s.err
}

func (s *stubSession) Pause(cause recorder.Cause) error {
	s.pauses = append(s.pauses, cause)
	return s.err
}

func (s *stubSession) Status() recorder.Status {
	return recorder.Status{State: "paused", Segments: 2, LastOutput: "/rec/a.wav"}
}

func newConsole(session consoleSession) (*Console, chan recorder.Signal, *bytes.Buffer) {
	signals := make(chan recorder.Signal, 8)
	out := &bytes.Buffer{}
	return &Console{session: session, signals: signals, out: out}, signals, out
}

func TestConsoleSignalCommands(t *testing.T) {
	tests := []struct {
		line string
		want recorder.Signal
	}{
		{"call", recorder.SignalCallBegan},
		{"call-end", recorder.SignalCallEnded},
		{"bg", recorder.SignalAppBackgrounded},
		{"FG", recorder.SignalAppForegrounded},
		{"int", recorder.SignalSessionInterruptionBegan},
		{" int-end ", recorder.SignalSessionInterruptionEnded},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, signals, _ := newConsole(&stubSession{})
			assert.False(t, c.Handle(context.Background(), tt.line))
			require.Len(t, signals, 1)
			assert.Equal(t, tt.want, <-signals)
		})
	}
}

func TestConsoleControlCommands(t *testing.T) {
	session := &stubSession{}
	c, signals, out := newConsole(session)
	ctx := context.Background()

	assert.False(t, c.Handle(ctx, "pause"))
	assert.False(t, c.Handle(ctx, "resume"))
	assert.False(t, c.Handle(ctx, "status"))
	assert.False(t, c.Handle(ctx, ""))
	assert.False(t, c.Handle(ctx, "bogus"))

	assert.Equal(t, []recorder.Cause{recorder.CauseDefault}, session.pauses)
	assert.Equal(t, 1, session.records)
	assert.Empty(t, signals)
	assert.Contains(t, out.String(), "state=paused segments=2 last=/rec/a.wav")
	assert.Contains(t, out.String(), `unknown command "bogus"`)

	assert.False(t, c.Stopped())
	assert.True(t, c.Handle(ctx, "stop"))
	assert.True(t, c.Stopped())
}

func TestConsoleReportsErrors(t *testing.T) {
	c, _, out := newConsole(&stubSession{err: errors.NewStd("device busy")})
	c.Handle(context.Background(), "record")
	assert.Contains(t, out.String(), "error: device busy")
}

func TestConsoleRunStopsOnCommand(t *testing.T) {
	session := &stubSession{}
	c, signals, _ := newConsole(session)

	in := strings.NewReader("call\ncall_end\nstop\npause\n")
	require.NoError(t, c.Run(context.Background(), in))

	assert.True(t, c.Stopped())
	assert.Len(t, signals, 2)
	// lines after stop are not read
	assert.Empty(t, session.pauses)
}

func TestConsoleRunEOF(t *testing.T) {
	c, _, _ := newConsole(&stubSession{})
	require.NoError(t, c.Run(context.Background(), strings.NewReader("status\n")))
	assert.False(t, c.Stopped())
}
