package capture

import (
	"os"
	"sync"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/wavcodec"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

// RawSink streams captured bytes verbatim behind a placeholder header that
// is patched with the real length on close.
type RawSink struct{}

// NewRawSink returns a RawSink
func NewRawSink() *RawSink {
	return &RawSink{}
}

// Kind implements Sink
func (s *RawSink) Kind() string { return conf.SinkRaw }

// Open implements Sink
func (s *RawSink) Open(path string, format audiocore.AudioFormat) (Handle, error) {
	placeholder, err := wavcodec.Encode(format, 0)
	if err != nil {
		return nil, openError(path, err)
	}

	f, err := createSegmentFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(placeholder); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, openError(path, err)
	}

	getLogger().Debug("raw segment opened", logger.String("path", path))
	return &rawHandle{file: f, path: path, frame: format.BytesPerFrame()}, nil
}

type rawHandle struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	frame  int
	carry  []byte // partial frame held from the previous write
	n      int64
	closed bool
}

func (h *rawHandle) Path() string { return h.path }

func (h *rawHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, writeError(h.path, "write_segment", os.ErrClosed)
	}

	data, carry := splitFrames(h.carry, p, h.frame)
	if h.n+int64(len(data)) > wavcodec.MaxPayload {
		return 0, writeError(h.path, "write_segment", wavcodec.ErrPayloadTooLarge)
	}
	h.carry = carry

	if len(data) == 0 {
		return len(p), nil
	}
	n, err := h.file.Write(data)
	h.n += int64(n)
	if err != nil {
		return 0, writeError(h.path, "write_segment", err)
	}
	return len(p), nil
}

func (h *rawHandle) Close() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return h.n, nil
	}
	h.closed = true
	dropCarry(h.path, h.carry)
	h.carry = nil

	if err := wavcodec.PatchSizes(h.file, h.n); err != nil {
		_ = h.file.Close()
		return h.n, writeError(h.path, "close_segment", err)
	}
	if err := h.file.Sync(); err != nil {
		_ = h.file.Close()
		return h.n, writeError(h.path, "close_segment", err)
	}
	if err := h.file.Close(); err != nil {
		return h.n, writeError(h.path, "close_segment", err)
	}
	return h.n, nil
}
