// Package capture provides the sinks that persist captured PCM into segment
// files and the malgo device that produces it.
package capture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

const componentCapture = "capture"

// segmentFilePermissions matches the logger's file permissions
const segmentFilePermissions = 0o600

// Sink opens segment files for captured audio
type Sink interface {
	// Open starts a new segment at path. The file must not already exist.
	Open(path string, format audiocore.AudioFormat) (Handle, error)
	// Kind names the backing strategy
	Kind() string
}

// Handle is one open segment. Close finalizes the file and returns the
// number of payload bytes it holds. Close is idempotent.
type Handle interface {
	Write(p []byte) (int, error)
	Close() (int64, error)
	Path() string
}

// NewSink returns the sink for kind, one of conf.SinkRaw or conf.SinkWAV
func NewSink(kind string) (Sink, error) {
	switch kind {
	case conf.SinkRaw, "":
		return NewRawSink(), nil
	case conf.SinkWAV:
		return NewEncoderSink(), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", kind)
	}
}

func getLogger() logger.Logger {
	return logger.Global().Module(componentCapture)
}

// createSegmentFile creates path exclusively, making its directory if needed
func createSegmentFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, openError(path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, segmentFilePermissions)
	if err != nil {
		return nil, openError(path, err)
	}
	return f, nil
}

func openError(path string, err error) error {
	return audiocore.NewError(audiocore.ErrCaptureOpenFailed,
		fmt.Errorf("open %s: %w", path, err), componentCapture, "open_segment")
}

func writeError(path, operation string, err error) error {
	return audiocore.NewError(audiocore.ErrCaptureWriteFailed,
		fmt.Errorf("%s %s: %w", operation, path, err), componentCapture, operation)
}

// splitFrames joins carry and p and splits the result at the last whole
// frame. The returned carry never aliases p.
func splitFrames(carry, p []byte, frame int) (whole, rest []byte) {
	data := p
	if len(carry) > 0 {
		data = append(append(make([]byte, 0, len(carry)+len(p)), carry...), p...)
	}
	if frame <= 1 {
		return data, nil
	}
	cut := len(data) - len(data)%frame
	if cut < len(data) {
		rest = bytes.Clone(data[cut:])
	}
	return data[:cut], rest
}

func dropCarry(path string, carry []byte) {
	if len(carry) > 0 {
		getLogger().Debug("dropping partial frame at segment end",
			logger.String("path", path), logger.Int("bytes", len(carry)))
	}
}
