// Package wavcodec encodes and decodes the fixed 44-byte PCM WAV header and
// locates the PCM payload of WAV files on disk.
package wavcodec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/errors"
)

const (
	// HeaderSize is the length of the canonical RIFF/WAVE header
	HeaderSize = 44

	// FormatPCM is the WAVE_FORMAT_PCM tag
	FormatPCM = 1

	fmtChunkSize = 16

	// riffSizeOffset and dataSizeOffset locate the two length fields
	riffSizeOffset = 4
	dataSizeOffset = 40

	// MaxPayload is the largest payload whose RIFF size still fits in 32 bits
	MaxPayload = math.MaxUint32 - (HeaderSize - 8)
)

var (
	// ErrInvalidHeader is returned for malformed or unsupported headers
	ErrInvalidHeader = errors.NewStd("invalid wav header")

	// ErrPayloadTooLarge is returned when a payload cannot be described by a 32-bit RIFF size
	ErrPayloadTooLarge = errors.NewStd("wav payload too large")
)

var (
	riffID = [4]byte{'R', 'I', 'F', 'F'}
	waveID = [4]byte{'W', 'A', 'V', 'E'}
	fmtID  = [4]byte{'f', 'm', 't', ' '}
	dataID = [4]byte{'d', 'a', 't', 'a'}
)

// Header is the decoded fixed WAV header
type Header struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32 // payload length in bytes
}

// rawHeader mirrors the on-disk layout for binary.Write/Read
type rawHeader struct {
	RiffID        [4]byte
	RiffSize      uint32
	WaveID        [4]byte
	FmtID         [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataID        [4]byte
	DataSize      uint32
}

// HeaderFor builds the header describing payloadLen bytes of format.
// It does not validate; use Encode for checked output.
func HeaderFor(format audiocore.AudioFormat, payloadLen uint32) Header {
	return Header{
		AudioFormat:   FormatPCM,
		NumChannels:   uint16(format.Channels),
		SampleRate:    uint32(format.SampleRate),
		ByteRate:      uint32(format.ByteRate()),
		BlockAlign:    uint16(format.BytesPerFrame()),
		BitsPerSample: uint16(format.BitDepth),
		DataSize:      payloadLen,
	}
}

// Encode returns the 44-byte header for payloadLen bytes of format
func Encode(format audiocore.AudioFormat, payloadLen int64) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if payloadLen < 0 || payloadLen > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}
	return HeaderFor(format, uint32(payloadLen)).MarshalBinary()
}

// MarshalBinary implements encoding.BinaryMarshaler
func (h Header) MarshalBinary() ([]byte, error) {
	if uint64(h.DataSize) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.DataSize)
	}

	raw := rawHeader{
		RiffID:        riffID,
		RiffSize:      HeaderSize - 8 + h.DataSize,
		WaveID:        waveID,
		FmtID:         fmtID,
		FmtSize:       fmtChunkSize,
		AudioFormat:   h.AudioFormat,
		NumChannels:   h.NumChannels,
		SampleRate:    h.SampleRate,
		ByteRate:      h.ByteRate,
		BlockAlign:    h.BlockAlign,
		BitsPerSample: h.BitsPerSample,
		DataID:        dataID,
		DataSize:      h.DataSize,
	}

	buf := make([]byte, 0, HeaderSize)
	return binary.Append(buf, binary.LittleEndian, &raw)
}

// WriteTo writes the encoded header to w
func (h Header) WriteTo(w io.Writer) (int64, error) {
	b, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Decode parses a canonical 44-byte header. Only the header bytes are
// inspected; trailing bytes are ignored.
func Decode(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidHeader, HeaderSize, len(b))
	}

	var raw rawHeader
	if _, err := binary.Decode(b[:HeaderSize], binary.LittleEndian, &raw); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	switch {
	case raw.RiffID != riffID || raw.WaveID != waveID:
		return Header{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidHeader)
	case raw.FmtID != fmtID || raw.FmtSize != fmtChunkSize:
		return Header{}, fmt.Errorf("%w: fmt chunk not at offset 12", ErrInvalidHeader)
	case raw.DataID != dataID:
		return Header{}, fmt.Errorf("%w: data chunk not at offset 36", ErrInvalidHeader)
	}

	h := Header{
		AudioFormat:   raw.AudioFormat,
		NumChannels:   raw.NumChannels,
		SampleRate:    raw.SampleRate,
		ByteRate:      raw.ByteRate,
		BlockAlign:    raw.BlockAlign,
		BitsPerSample: raw.BitsPerSample,
		DataSize:      raw.DataSize,
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ReadHeader reads exactly HeaderSize bytes from r and decodes them
func ReadHeader(r io.Reader) (Header, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	return Decode(b)
}

// Validate checks the derived fields against channels, rate and bit depth
func (h Header) Validate() error {
	if h.AudioFormat != FormatPCM {
		return fmt.Errorf("%w: format tag %d is not PCM", ErrInvalidHeader, h.AudioFormat)
	}
	if h.NumChannels == 0 || h.SampleRate == 0 || h.BitsPerSample == 0 || h.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: %d channels, %d Hz, %d bits", ErrInvalidHeader,
			h.NumChannels, h.SampleRate, h.BitsPerSample)
	}
	blockAlign := uint32(h.NumChannels) * uint32(h.BitsPerSample/8)
	if uint32(h.BlockAlign) != blockAlign {
		return fmt.Errorf("%w: block align %d, want %d", ErrInvalidHeader, h.BlockAlign, blockAlign)
	}
	if h.ByteRate != h.SampleRate*blockAlign {
		return fmt.Errorf("%w: byte rate %d, want %d", ErrInvalidHeader, h.ByteRate, h.SampleRate*blockAlign)
	}
	return nil
}

// Format returns the AudioFormat the header describes
func (h Header) Format() audiocore.AudioFormat {
	return audiocore.AudioFormat{
		SampleRate: int(h.SampleRate),
		Channels:   int(h.NumChannels),
		BitDepth:   int(h.BitsPerSample),
		Encoding:   audiocore.EncodingPCMS16LE,
	}
}

// Duration returns the playback length of the payload
func (h Header) Duration() time.Duration {
	return PayloadDuration(h.Format(), int64(h.DataSize))
}

// PayloadDuration converts a payload length to playback duration
func PayloadDuration(format audiocore.AudioFormat, n int64) time.Duration {
	return format.DurationForBytes(n)
}

// PayloadLength converts a duration to whole-frame payload bytes
func PayloadLength(format audiocore.AudioFormat, d time.Duration) int64 {
	return format.BytesForDuration(d)
}

// PatchSizes rewrites the RIFF and data length fields of a canonical header
// already written at the start of w.
func PatchSizes(w io.WriterAt, payloadLen int64) error {
	if payloadLen < 0 || payloadLen > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], uint32(HeaderSize-8+payloadLen))
	if _, err := w.WriteAt(field[:], riffSizeOffset); err != nil {
		return fmt.Errorf("patch riff size: %w", err)
	}
	binary.LittleEndian.PutUint32(field[:], uint32(payloadLen))
	if _, err := w.WriteAt(field[:], dataSizeOffset); err != nil {
		return fmt.Errorf("patch data size: %w", err)
	}
	return nil
}
