package audiocore

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tphakala/seamless-recorder/internal/errors"
)

func TestDefaultFormat(t *testing.T) {
	f := DefaultFormat()

	assert.Equal(t, 16000, f.SampleRate)
	assert.Equal(t, 2, f.Channels)
	assert.Equal(t, 16, f.BitDepth)
	assert.Equal(t, 2, f.BytesPerSample())
	assert.Equal(t, 4, f.BytesPerFrame())
	assert.Equal(t, 64000, f.ByteRate())
	require.NoError(t, f.Validate())
	assert.Equal(t, "16000Hz/2ch/16bit", f.String())
}

func TestFormatConversions(t *testing.T) {
	f := DefaultFormat()

	tests := []struct {
		name  string
		d     time.Duration
		bytes int64
	}{
		{"zero", 0, 0},
		{"two seconds", 2 * time.Second, 128000},
		{"one frame", time.Second / 16000, 4},
		{"partial frame floors", time.Second/16000 - time.Nanosecond, 0},
		{"24 hours", 24 * time.Hour, 24 * 3600 * 64000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bytes, f.BytesForDuration(tt.d))
		})
	}

	assert.Equal(t, 2*time.Second, f.DurationForBytes(128000))
	assert.Equal(t, 2*time.Second, f.DurationForBytes(128003), "trailing partial frame ignored")
	assert.Equal(t, time.Duration(0), f.DurationForBytes(-1))
	assert.Equal(t, 1500*time.Millisecond, f.DurationForBytes(96000))
}

func TestFramesForDurationNoOverflow(t *testing.T) {
	f := AudioFormat{SampleRate: 192000, Channels: 8, BitDepth: 16}
	// 24h at 192kHz overflows int64 nanoseconds*rate if computed naively
	assert.Equal(t, int64(24*3600*192000), f.FramesForDuration(24*time.Hour))
}

func TestFormatValidateAndEqual(t *testing.T) {
	f := DefaultFormat()

	bad := []AudioFormat{
		{SampleRate: 0, Channels: 2, BitDepth: 16},
		{SampleRate: 16000, Channels: 0, BitDepth: 16},
		{SampleRate: 16000, Channels: 2, BitDepth: 24},
		{SampleRate: 16000, Channels: 2, BitDepth: 16, Encoding: "pcm_f32le"},
	}
	for _, b := range bad {
		assert.Error(t, b.Validate(), b.String())
	}

	noEncoding := f
	noEncoding.Encoding = ""
	assert.True(t, f.Equal(noEncoding))

	mono := f
	mono.Channels = 1
	assert.False(t, f.Equal(mono))
}

func TestSilenceSizing(t *testing.T) {
	buf, err := Silence(2*time.Second, DefaultFormat())
	require.NoError(t, err)
	assert.Len(t, buf, 128000)
	assert.Equal(t, make([]byte, 128000), buf)

	empty, err := Silence(0, DefaultFormat())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSilenceRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		synth SilenceSynthesizer
		d     time.Duration
	}{
		{"negative", DefaultSilence, -time.Second},
		{"beyond 24h", DefaultSilence, 24*time.Hour + time.Nanosecond},
		{"beyond custom bound", SilenceSynthesizer{MaxDuration: time.Minute}, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.synth.Synthesize(tt.d, DefaultFormat())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDurationOutOfRange)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
		})
	}

	n, err := DefaultSilence.Length(24*time.Hour, DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, int64(24*3600*64000), n)
}

func TestSilenceWriteToStreamsInChunks(t *testing.T) {
	var buf bytes.Buffer
	d := 3*time.Second + 250*time.Millisecond

	n, err := DefaultSilence.WriteTo(&buf, d, DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, int64(208000), n)
	assert.Equal(t, 208000, buf.Len())
	assert.Equal(t, 0, bytes.Count(buf.Bytes(), []byte{1}))
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestSilenceWriteToPropagatesWriteErrors(t *testing.T) {
	n, err := DefaultSilence.WriteTo(&failingWriter{after: 1}, 10*time.Second, DefaultFormat())
	require.Error(t, err)
	assert.Equal(t, int64(silenceChunkSize), n)
}

func TestSegments(t *testing.T) {
	f := DefaultFormat()

	file := FileSegment("/tmp/a.temp", 320000)
	assert.True(t, file.IsFile())
	assert.Equal(t, SegmentFile, file.Kind)
	assert.Equal(t, 5*time.Second, file.PlaybackLength(f))
	require.NoError(t, file.Validate())

	gap := SilenceSegment(3 * time.Second)
	assert.False(t, gap.IsFile())
	assert.Equal(t, 3*time.Second, gap.PlaybackLength(f))
	assert.Equal(t, "silence(3s)", gap.String())
	require.NoError(t, SilenceSegment(0).Validate())

	assert.Error(t, FileSegment("", 10).Validate())
	assert.Error(t, FileSegment("x", -1).Validate())
	assert.Error(t, SilenceSegment(-time.Second).Validate())
	assert.Error(t, Segment{Kind: SegmentKind(9)}.Validate())
	assert.Equal(t, "file", SegmentFile.String())
}

func TestNewErrorWrapsKindAndCause(t *testing.T) {
	cause := errors.New("no such file")
	err := NewError(ErrSegmentReadFailed, cause, "export", "read_segment")

	assert.ErrorIs(t, err, ErrSegmentReadFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrFormatMismatch)
	assert.Equal(t, apperrors.CategoryFileIO, err.Category)
	assert.Equal(t, "export", err.GetComponent())
	assert.Equal(t, "segment read failed: no such file", err.Error())

	bare := NewError(ErrCaptureOpenFailed, nil, "capture", "open")
	assert.ErrorIs(t, bare, ErrCaptureOpenFailed)
	assert.Equal(t, apperrors.CategoryCapture, bare.Category)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "segment-read", ErrorKind(NewError(ErrSegmentReadFailed, errors.New("x"), "export", "read")))
	assert.Equal(t, "filesystem-move", ErrorKind(ErrFilesystemMoveFailed))
	assert.Equal(t, "other", ErrorKind(errors.New("boom")))
	assert.Equal(t, "other", ErrorKind(nil))
}
