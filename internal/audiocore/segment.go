package audiocore

import (
	"fmt"
	"time"
)

// SegmentKind tags the two Segment shapes
type SegmentKind int

const (
	// SegmentFile is captured audio stored in a WAV file
	SegmentFile SegmentKind = iota
	// SegmentSilence is a gap synthesized at composition time
	SegmentSilence
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentFile:
		return "file"
	case SegmentSilence:
		return "silence"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one contiguous span of the final track. Path and ByteLength
// are set for SegmentFile, Duration for SegmentSilence.
type Segment struct {
	Kind       SegmentKind
	Path       string        // WAV file holding the captured payload
	ByteLength int64         // payload bytes, excluding the header
	Duration   time.Duration // silence length
}

// FileSegment returns a file-backed segment
func FileSegment(path string, byteLength int64) Segment {
	return Segment{Kind: SegmentFile, Path: path, ByteLength: byteLength}
}

// SilenceSegment returns a silence segment
func SilenceSegment(d time.Duration) Segment {
	return Segment{Kind: SegmentSilence, Duration: d}
}

// IsFile reports whether the segment is file-backed
func (s Segment) IsFile() bool {
	return s.Kind == SegmentFile
}

// Validate rejects negative lengths, unknown kinds and file segments without a path
func (s Segment) Validate() error {
	switch s.Kind {
	case SegmentFile:
		if s.Path == "" {
			return fmt.Errorf("file segment has no path")
		}
		if s.ByteLength < 0 {
			return fmt.Errorf("file segment %s has negative length %d", s.Path, s.ByteLength)
		}
	case SegmentSilence:
		if s.Duration < 0 {
			return fmt.Errorf("silence segment has negative duration %s", s.Duration)
		}
	default:
		return fmt.Errorf("unknown segment kind %d", int(s.Kind))
	}
	return nil
}

// PlaybackLength returns the duration the segment contributes to the output
func (s Segment) PlaybackLength(format AudioFormat) time.Duration {
	if s.Kind == SegmentSilence {
		return format.DurationForBytes(format.BytesForDuration(s.Duration))
	}
	return format.DurationForBytes(s.ByteLength)
}

func (s Segment) String() string {
	if s.Kind == SegmentSilence {
		return fmt.Sprintf("silence(%s)", s.Duration)
	}
	return fmt.Sprintf("file(%s, %d bytes)", s.Path, s.ByteLength)
}
