package audiocore

import (
	"fmt"
	"time"

	"github.com/tphakala/seamless-recorder/internal/conf"
)

// EncodingPCMS16LE is the only supported sample encoding
const EncodingPCMS16LE = "pcm_s16le"

// AudioFormat describes interleaved linear PCM audio
type AudioFormat struct {
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of interleaved channels
	BitDepth   int    // Bits per sample
	Encoding   string // Sample encoding, EncodingPCMS16LE
}

// DefaultFormat returns the fixed recording format
func DefaultFormat() AudioFormat {
	return AudioFormat{
		SampleRate: conf.SampleRate,
		Channels:   conf.NumChannels,
		BitDepth:   conf.BitDepth,
		Encoding:   EncodingPCMS16LE,
	}
}

// BytesPerSample returns the size of one sample of one channel
func (f AudioFormat) BytesPerSample() int {
	return f.BitDepth / 8
}

// BytesPerFrame returns the size of one sample across all channels
// (the WAV block align).
func (f AudioFormat) BytesPerFrame() int {
	return f.Channels * f.BytesPerSample()
}

// ByteRate returns bytes per second of audio
func (f AudioFormat) ByteRate() int {
	return f.SampleRate * f.BytesPerFrame()
}

// FramesForDuration returns floor(d * SampleRate) without overflowing int64
// for any duration representable by time.Duration.
func (f AudioFormat) FramesForDuration(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	rate := int64(f.SampleRate)
	secs := int64(d / time.Second)
	rem := int64(d % time.Second)
	return secs*rate + rem*rate/int64(time.Second)
}

// BytesForDuration returns the payload length for d, rounded down to a whole frame
func (f AudioFormat) BytesForDuration(d time.Duration) int64 {
	return f.FramesForDuration(d) * int64(f.BytesPerFrame())
}

// DurationForBytes returns the playback duration of n payload bytes.
// Trailing bytes that do not form a full frame are ignored.
func (f AudioFormat) DurationForBytes(n int64) time.Duration {
	frameSize := int64(f.BytesPerFrame())
	if n <= 0 || frameSize == 0 || f.SampleRate <= 0 {
		return 0
	}
	frames := n / frameSize
	rate := int64(f.SampleRate)
	return time.Duration(frames/rate)*time.Second +
		time.Duration((frames%rate)*int64(time.Second)/rate)
}

// Validate checks that the format is linear PCM this package can handle
func (f AudioFormat) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	case f.Channels <= 0:
		return fmt.Errorf("invalid channel count %d", f.Channels)
	case f.BitDepth != 16:
		return fmt.Errorf("unsupported bit depth %d", f.BitDepth)
	case f.Encoding != "" && f.Encoding != EncodingPCMS16LE:
		return fmt.Errorf("unsupported encoding %q", f.Encoding)
	}
	return nil
}

// Equal reports whether two formats describe the same sample layout.
// An empty encoding is treated as EncodingPCMS16LE.
func (f AudioFormat) Equal(other AudioFormat) bool {
	return f.SampleRate == other.SampleRate &&
		f.Channels == other.Channels &&
		f.BitDepth == other.BitDepth &&
		f.encoding() == other.encoding()
}

func (f AudioFormat) encoding() string {
	if f.Encoding == "" {
		return EncodingPCMS16LE
	}
	return f.Encoding
}

// String renders the format as "16000Hz/2ch/16bit"
func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}
