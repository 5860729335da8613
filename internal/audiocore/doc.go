// Package audiocore holds the audio primitives shared by capture, composition
// and the recording session.
//
// # Format
//
// Every recording uses one AudioFormat: 16 kHz, 2 channels, 16-bit signed
// little-endian interleaved PCM. Durations and byte lengths convert through
// the format and are always aligned to whole sample frames.
//
// # Segments
//
// A recording is an ordered list of Segment values. A segment is either
// file-backed captured audio or a silence gap to be synthesized at
// composition time:
//
//	log := []audiocore.Segment{
//	    audiocore.FileSegment("/tmp/take.~0.temp", 160000),
//	    audiocore.SilenceSegment(3 * time.Second),
//	    audiocore.FileSegment("/tmp/take.~1.temp", 64000),
//	}
//
// Consumers switch on Segment.Kind and handle both kinds.
//
// # Errors
//
// Failures carry one of the sentinel errors in errors.go (ErrCaptureOpenFailed,
// ErrSegmentReadFailed, ErrFormatMismatch, ...) wrapped in an enhanced error.
// Test for them with errors.Is.
package audiocore
