package capture

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/wavcodec"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

// EncoderSink writes segments through the go-audio WAV encoder, which
// rewrites the header itself when closed.
type EncoderSink struct{}

// NewEncoderSink returns an EncoderSink
func NewEncoderSink() *EncoderSink {
	return &EncoderSink{}
}

// Kind implements Sink
func (s *EncoderSink) Kind() string { return conf.SinkWAV }

// Open implements Sink
func (s *EncoderSink) Open(path string, format audiocore.AudioFormat) (Handle, error) {
	if err := format.Validate(); err != nil {
		return nil, openError(path, err)
	}

	f, err := createSegmentFile(path)
	if err != nil {
		return nil, err
	}

	enc := wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1)

	getLogger().Debug("encoder segment opened", logger.String("path", path))
	return &encoderHandle{
		file:   f,
		path:   path,
		enc:    enc,
		format: format,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

type encoderHandle struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	enc    *wav.Encoder
	format audiocore.AudioFormat
	buf    *audio.IntBuffer
	carry  []byte // partial frame held from the previous write
	n      int64
	closed bool
}

func (h *encoderHandle) Path() string { return h.path }

// Write converts little-endian 16-bit samples to ints for the encoder. A
// trailing partial frame is held until the next write.
func (h *encoderHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, writeError(h.path, "write_segment", os.ErrClosed)
	}

	data, carry := splitFrames(h.carry, p, h.format.BytesPerFrame())
	h.carry = carry

	samples := h.buf.Data[:0]
	for i := 0; i+1 < len(data); i += 2 {
		samples = append(samples, int(int16(binary.LittleEndian.Uint16(data[i:]))))
	}
	h.buf.Data = samples

	if len(samples) > 0 {
		if err := h.enc.Write(h.buf); err != nil {
			return 0, writeError(h.path, "write_segment", err)
		}
		h.n += int64(len(data))
	}
	return len(p), nil
}

func (h *encoderHandle) Close() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return h.n, nil
	}
	h.closed = true

	dropCarry(h.path, h.carry)
	h.carry = nil

	// The encoder writes its header lazily, so an empty segment gets a
	// canonical zero-length header instead.
	if h.n == 0 {
		if err := writeEmptyHeader(h.file, h.format); err != nil {
			_ = h.file.Close()
			return 0, writeError(h.path, "close_segment", err)
		}
	} else if err := h.enc.Close(); err != nil {
		_ = h.file.Close()
		return h.n, writeError(h.path, "close_segment", err)
	}
	if err := h.file.Close(); err != nil {
		return h.n, writeError(h.path, "close_segment", err)
	}
	return h.n, nil
}

func writeEmptyHeader(f *os.File, format audiocore.AudioFormat) error {
	hdr, err := wavcodec.Encode(format, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(hdr, 0); err != nil {
		return err
	}
	return f.Sync()
}
