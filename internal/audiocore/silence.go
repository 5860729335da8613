package audiocore

import (
	"fmt"
	"io"
	"time"

	"github.com/tphakala/seamless-recorder/internal/conf"
)

// silenceChunkSize bounds the zero buffer used when streaming silence
const silenceChunkSize = 64 * 1024

// zeroChunk is shared read-only; PCM silence is all zero bytes
var zeroChunk = make([]byte, silenceChunkSize)

// SilenceSynthesizer produces zero-amplitude PCM for gaps between segments
type SilenceSynthesizer struct {
	// MaxDuration rejects longer gaps; zero means conf.MaxSilenceDuration
	MaxDuration time.Duration
}

// DefaultSilence uses the 24 hour bound
var DefaultSilence = SilenceSynthesizer{}

func (s SilenceSynthesizer) limit() time.Duration {
	if s.MaxDuration <= 0 || s.MaxDuration > conf.MaxSilenceDuration {
		return conf.MaxSilenceDuration
	}
	return s.MaxDuration
}

// Length returns floor(d * rate) * channels * bytesPerSample, checking the bound first
func (s SilenceSynthesizer) Length(d time.Duration, format AudioFormat) (int64, error) {
	if d < 0 || d > s.limit() {
		return 0, NewError(ErrDurationOutOfRange,
			fmt.Errorf("silence of %s outside [0, %s]", d, s.limit()),
			ComponentAudioCore, "size_silence")
	}
	if err := format.Validate(); err != nil {
		return 0, NewError(ErrFormatMismatch, err, ComponentAudioCore, "size_silence")
	}
	return format.BytesForDuration(d), nil
}

// Synthesize returns a zero buffer for d. Prefer WriteTo for long gaps.
func (s SilenceSynthesizer) Synthesize(d time.Duration, format AudioFormat) ([]byte, error) {
	n, err := s.Length(d, format)
	if err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

// WriteTo streams the silence for d to w in bounded chunks and returns the bytes written
func (s SilenceSynthesizer) WriteTo(w io.Writer, d time.Duration, format AudioFormat) (int64, error) {
	n, err := s.Length(d, format)
	if err != nil {
		return 0, err
	}

	var written int64
	for written < n {
		chunk := zeroChunk
		if remaining := n - written; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		m, err := w.Write(chunk)
		written += int64(m)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Silence is DefaultSilence.Synthesize
func Silence(d time.Duration, format AudioFormat) ([]byte, error) {
	return DefaultSilence.Synthesize(d, format)
}

// SilenceLength is DefaultSilence.Length
func SilenceLength(d time.Duration, format AudioFormat) (int64, error) {
	return DefaultSilence.Length(d, format)
}

// WriteSilence is DefaultSilence.WriteTo
func WriteSilence(w io.Writer, d time.Duration, format AudioFormat) (int64, error) {
	return DefaultSilence.WriteTo(w, d, format)
}
