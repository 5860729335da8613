// Package recorder implements the interruption-aware recording session. A
// session records one logical track as a log of file segments, one per
// uninterrupted capture span, plus silence segments for call interruptions,
// and composes the log into a single WAV file when stopped.
package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/capture"
	"github.com/tphakala/seamless-recorder/internal/audiocore/export"
	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/logger"
	"github.com/tphakala/seamless-recorder/internal/observability/metrics"
)

const componentRecorder = "recorder"

// Options configures a Session. Sink and Composer are required, as is one
// of Destination or DestinationFunc.
type Options struct {
	Sink     capture.Sink
	Composer export.Composer
	Format   audiocore.AudioFormat

	// Destination is the fixed output path of every recording
	Destination string
	// DestinationFunc names the output of a recording started at t
	DestinationFunc func(t time.Time) string
	// TempDir holds segment files; defaults to os.TempDir()
	TempDir string

	Clock   clock.Clock
	Logger  logger.Logger
	Metrics metrics.SessionRecorder
}

// Status is a point-in-time view of the session
type Status struct {
	State      string `json:"state"`
	Recording  bool   `json:"recording"`
	Segments   int    `json:"segments"`
	LastOutput string `json:"last_output,omitempty"`
	Dropped    int64  `json:"dropped_bytes"`
}

// interruptionClock marks the start of a call interruption
type interruptionClock struct {
	start   time.Time
	running bool
}

// finalization is one in-flight composition started by Stop
type finalization struct {
	done     chan struct{}
	segments []audiocore.Segment
	dest     string
	result   *export.Result
	err      error
}

// Session is the recording state machine. All methods are safe for
// concurrent use; control calls, signal handling and capture writes are
// serialized by one mutex.
type Session struct {
	sink     capture.Sink
	composer export.Composer
	format   audiocore.AudioFormat
	destFn   func(time.Time) string
	tempDir  string
	clk      clock.Clock
	log      logger.Logger
	metrics  metrics.SessionRecorder

	mu            sync.Mutex
	state         State
	segments      []audiocore.Segment
	handle        capture.Handle
	cause         Cause
	interruption  interruptionClock
	dest          string
	lastOutput    string
	dropped       int64
	finalizing    *finalization
	pendingRecord bool

	finalizers sync.WaitGroup
}

// New returns an idle session
func New(opts Options) (*Session, error) {
	if opts.Sink == nil || opts.Composer == nil {
		return nil, errors.Newf("session requires a sink and a composer").
			Component(componentRecorder).
			Category(errors.CategoryConfiguration).
			Build()
	}

	destFn := opts.DestinationFunc
	if destFn == nil {
		if opts.Destination == "" {
			return nil, errors.Newf("session requires a destination").
				Component(componentRecorder).
				Category(errors.CategoryConfiguration).
				Build()
		}
		dest := opts.Destination
		destFn = func(time.Time) string { return dest }
	}

	format := opts.Format
	if format == (audiocore.AudioFormat{}) {
		format = audiocore.DefaultFormat()
	}
	if err := format.Validate(); err != nil {
		return nil, errors.New(err).
			Component(componentRecorder).
			Category(errors.CategoryValidation).
			Context("format", format.String()).
			Build()
	}

	s := &Session{
		sink:     opts.Sink,
		composer: opts.Composer,
		format:   format,
		destFn:   destFn,
		tempDir:  opts.TempDir,
		clk:      opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if s.tempDir == "" {
		s.tempDir = os.TempDir()
	}
	if s.clk == nil {
		s.clk = clock.New()
	}
	if s.log == nil {
		s.log = logger.Global().Module(componentRecorder)
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopRecorder{}
	}
	s.metrics.SetState(StateIdle.String())
	return s, nil
}

// Record starts a recording, or resumes a paused one. A pending call
// interruption is first closed with a silence segment of its elapsed
// length. Record is a no-op while active. While finalizing, one record is
// queued and honoured once the composition completes.
func (s *Session) Record() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.recordLocked()
	s.recordOutcome("record", err)
	return err
}

// Pause closes the open segment. A CauseCall pause starts the interruption
// clock. Pausing a session that is not active is a no-op, and never
// restarts a running clock.
func (s *Session) Pause(cause Cause) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil
	}
	err := s.pauseLocked(cause)
	if err != nil {
		// the segment file is unusable; start over
		s.resetLocked()
	}
	s.recordOutcome("pause", err)
	return err
}

// Stop closes the open segment and composes the log into the destination.
// It waits for the composition without holding the session, so signals
// are still handled meanwhile. A canceled ctx ends the wait but not the
// composition. Stop while finalizing waits for the in-flight result.
func (s *Session) Stop(ctx context.Context) error {
	start := s.clk.Now()

	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return nil
	case StateFinalizing:
		f := s.finalizing
		s.mu.Unlock()
		return s.await(ctx, f)
	}

	if s.handle != nil {
		if err := s.closeHandleLocked(); err != nil {
			s.resetLocked()
			s.recordOutcome("stop", err)
			s.mu.Unlock()
			return err
		}
	}

	f := &finalization{
		done:     make(chan struct{}),
		segments: s.segments,
		dest:     s.dest,
	}
	s.segments = nil
	s.interruption = interruptionClock{}
	s.finalizing = f
	s.setStateLocked(StateFinalizing)
	s.finalizers.Go(func() { s.finalize(f) })
	s.mu.Unlock()

	err := s.await(ctx, f)
	s.metrics.RecordDuration("stop", s.clk.Since(start).Seconds())
	return err
}

func (s *Session) await(ctx context.Context, f *finalization) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finalize composes f and returns the session to idle
func (s *Session) finalize(f *finalization) {
	s.log.Info("finalizing recording",
		logger.String("dest", f.dest),
		logger.Int("segments", len(f.segments)))

	result, err := s.composer.Compose(context.Background(), f.segments, s.format, f.dest)

	s.mu.Lock()
	f.result, f.err = result, err
	if err == nil && result != nil && result.Path != "" {
		s.lastOutput = result.Path
	}
	if err != nil {
		s.log.Error("finalization failed, segment files kept for recovery",
			logger.String("dest", f.dest),
			logger.Error(err))
	}
	s.recordOutcome("stop", err)
	s.finalizing = nil
	s.setStateLocked(StateIdle)

	if s.pendingRecord {
		s.pendingRecord = false
		if rerr := s.recordLocked(); rerr != nil {
			s.log.Error("queued record failed", logger.Error(rerr))
			s.recordOutcome("record", rerr)
		}
	}
	s.mu.Unlock()

	close(f.done)
}

// Wait blocks until every composition started by Stop has finished
func (s *Session) Wait() {
	s.finalizers.Wait()
}

// recordLocked implements Record for both control calls and signals
func (s *Session) recordLocked() error {
	switch s.state {
	case StateActive:
		return nil
	case StateFinalizing:
		s.pendingRecord = true
		s.log.Debug("record queued until finalization completes")
		return nil
	case StateIdle:
		s.dest = s.destFn(s.clk.Now())
		s.segments = nil
		s.dropped = 0
	}

	var gap time.Duration
	if s.interruption.running {
		gap = s.clk.Since(s.interruption.start)
		if gap < 0 {
			gap = 0
		}
	}

	path := s.segmentPath()
	h, err := s.sink.Open(path, s.format)
	if err != nil {
		s.log.Error("failed to open segment", logger.String("path", path), logger.Error(err))
		return err
	}

	if s.interruption.running {
		s.appendLocked(audiocore.SilenceSegment(gap))
		s.metrics.RecordSilence(gap.Seconds())
		s.interruption = interruptionClock{}
	}
	s.appendLocked(audiocore.FileSegment(path, 0))
	s.handle = h
	s.setStateLocked(StateActive)

	s.log.Info("segment started",
		logger.String("path", path),
		logger.Int("index", len(s.segments)-1),
		logger.Duration("silence", gap))
	return nil
}

// pauseLocked implements Pause for both control calls and signals
func (s *Session) pauseLocked(cause Cause) error {
	if s.state != StateActive {
		return nil
	}
	if err := s.closeHandleLocked(); err != nil {
		return err
	}

	s.cause = cause
	if cause == CauseCall && !s.interruption.running {
		s.interruption = interruptionClock{start: s.clk.Now(), running: true}
	}
	s.setStateLocked(StatePaused)
	s.metrics.RecordInterruption(cause.String())

	s.log.Info("recording paused", fieldCause(cause), logger.Int("segments", len(s.segments)))
	return nil
}

// closeHandleLocked closes the open handle and records its length in the
// last file segment.
func (s *Session) closeHandleLocked() error {
	h := s.handle
	s.handle = nil

	n, err := h.Close()
	for i := len(s.segments) - 1; i >= 0; i-- {
		if s.segments[i].IsFile() {
			s.segments[i].ByteLength = n
			break
		}
	}
	if err != nil {
		s.log.Error("failed to close segment", logger.String("path", h.Path()), logger.Error(err))
		return err
	}
	s.log.Debug("segment closed", logger.String("path", h.Path()), logger.Int64("bytes", n))
	return nil
}

// Write delivers captured PCM to the open segment. Bytes arriving while no
// segment is open are dropped and counted. A write failure aborts the
// recording; segment files stay on disk.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.handle == nil {
		s.dropped += int64(len(p))
		s.metrics.AddDroppedBytes(len(p))
		return len(p), nil
	}

	n, err := s.handle.Write(p)
	s.metrics.AddCapturedBytes(n)
	if err != nil {
		s.failLocked("write", err)
		return n, err
	}
	return n, nil
}

// failLocked logs an asynchronous failure and drops the session to idle
func (s *Session) failLocked(operation string, err error) {
	s.log.Error("recording aborted",
		logger.String("operation", operation),
		fieldState(s.state),
		logger.Int("segments", len(s.segments)),
		logger.Error(err))
	s.recordOutcome(operation, err)
	s.resetLocked()
}

// resetLocked closes any handle best effort and discards the log. Segment
// files are left in place.
func (s *Session) resetLocked() {
	if s.handle != nil {
		if _, err := s.handle.Close(); err != nil {
			s.log.Warn("failed to close segment during reset", logger.Error(err))
		}
		s.handle = nil
	}
	s.segments = nil
	s.interruption = interruptionClock{}
	s.cause = CauseDefault
	if s.state != StateFinalizing {
		s.setStateLocked(StateIdle)
	}
}

func (s *Session) appendLocked(seg audiocore.Segment) {
	s.segments = append(s.segments, seg)
	s.metrics.RecordSegment(seg.Kind.String())
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.log.Debug("state change", logger.String("from", s.state.String()), logger.String("to", state.String()))
	s.state = state
	s.metrics.SetState(state.String())
}

func (s *Session) recordOutcome(operation string, err error) {
	if err != nil {
		s.metrics.RecordOperation(operation, metrics.StatusError)
		s.metrics.RecordError(operation, audiocore.ErrorKind(err))
		return
	}
	s.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

// segmentPath returns a fresh temp path for the next file segment:
// <tempDir>/<dest base>.~<index>-<uuid8>.temp
func (s *Session) segmentPath() string {
	index := 0
	for _, seg := range s.segments {
		if seg.IsFile() {
			index++
		}
	}
	base := filepath.Base(s.dest)
	return filepath.Join(s.tempDir, fmt.Sprintf("%s.~%d-%s.temp", base, index, uuid.NewString()[:8]))
}

// IsRecording reports whether a segment is being captured
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// LastOutputPath returns the output of the most recent successful Stop
func (s *Session) LastOutputPath() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutput, s.lastOutput != ""
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Segments returns a copy of the current segment log
func (s *Session) Segments() []audiocore.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audiocore.Segment(nil), s.segments...)
}

// Status returns a snapshot for status reporting
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:      s.state.String(),
		Recording:  s.state == StateActive,
		Segments:   len(s.segments),
		LastOutput: s.lastOutput,
		Dropped:    s.dropped,
	}
}

// Format returns the session's audio format
func (s *Session) Format() audiocore.AudioFormat {
	return s.format
}

func fieldState(state State) logger.Field {
	return logger.String("state", state.String())
}

func fieldCause(cause Cause) logger.Field {
	return logger.String("cause", cause.String())
}

func fieldSignal(sig Signal) logger.Field {
	return logger.String("signal", sig.String())
}
