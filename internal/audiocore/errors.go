package audiocore

import (
	"fmt"

	"github.com/tphakala/seamless-recorder/internal/errors"
)

// ComponentAudioCore identifies audiocore errors
const ComponentAudioCore = "audiocore"

// Failure kinds of a recording. Every error produced by capture, composition
// and the session wraps exactly one of these.
var (
	ErrCaptureOpenFailed      = errors.NewStd("capture open failed")
	ErrCaptureWriteFailed     = errors.NewStd("capture write failed")
	ErrSegmentReadFailed      = errors.NewStd("segment read failed")
	ErrFormatMismatch         = errors.NewStd("format mismatch")
	ErrDurationOutOfRange     = errors.NewStd("duration out of range")
	ErrDestinationWriteFailed = errors.NewStd("destination write failed")
	ErrFilesystemMoveFailed   = errors.NewStd("filesystem move failed")
)

// categoryFor maps a failure kind to its error category
func categoryFor(kind error) errors.ErrorCategory {
	switch kind {
	case ErrCaptureOpenFailed, ErrCaptureWriteFailed:
		return errors.CategoryCapture
	case ErrFormatMismatch, ErrDurationOutOfRange:
		return errors.CategoryValidation
	case ErrSegmentReadFailed, ErrDestinationWriteFailed, ErrFilesystemMoveFailed:
		return errors.CategoryFileIO
	default:
		return errors.CategoryAudio
	}
}

// NewError wraps cause with kind so that errors.Is matches both. component
// names the reporting package and operation the failed step.
func NewError(kind, cause error, component, operation string) *errors.EnhancedError {
	var err error
	if cause == nil {
		err = kind
	} else {
		err = fmt.Errorf("%w: %w", kind, cause)
	}

	return errors.New(err).
		Component(component).
		Category(categoryFor(kind)).
		Context("operation", operation).
		Build()
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrCaptureOpenFailed, "capture-open"},
	{ErrCaptureWriteFailed, "capture-write"},
	{ErrSegmentReadFailed, "segment-read"},
	{ErrFormatMismatch, "format-mismatch"},
	{ErrDurationOutOfRange, "duration-out-of-range"},
	{ErrDestinationWriteFailed, "destination-write"},
	{ErrFilesystemMoveFailed, "filesystem-move"},
}

// ErrorKind returns a short label for the failure kind wrapped by err,
// for metrics. Unknown errors are "other".
func ErrorKind(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "other"
}
