// Package export composes segment logs into a single PCM WAV file.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/wavcodec"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
	"github.com/tphakala/seamless-recorder/internal/observability/metrics"
)

const (
	componentExport = "export"

	operationCompose = "compose"

	// writeBufferSize sizes the buffered writer in front of the output file
	writeBufferSize = 256 * 1024

	outputFilePermissions = 0o644
)

// Composer turns a segment log into one output file
type Composer interface {
	Compose(ctx context.Context, segments []audiocore.Segment, format audiocore.AudioFormat, dest string) (*Result, error)
}

// Result describes a finished composition
type Result struct {
	// Path is the output file, empty when there was nothing to compose
	Path string
	// PayloadBytes is the PCM length of the output
	PayloadBytes int64
	// Duration is the playback length of the output
	Duration time.Duration
	// Segments is the number of segments written, after normalization
	Segments int
	// FastPath is true when the single input file was moved into place
	FastPath bool
}

// FreeSpaceFunc reports free bytes on the filesystem holding path
type FreeSpaceFunc func(path string) (uint64, error)

// Concatenator splices file payloads and synthesized silence into one WAV
type Concatenator struct {
	log       logger.Logger
	metrics   metrics.Recorder
	silence   audiocore.SilenceSynthesizer
	freeSpace FreeSpaceFunc
	move      func(src, dst string) error
	keep      bool
}

// Option configures a Concatenator
type Option func(*Concatenator)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Concatenator) { c.log = l }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Concatenator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithMaxSilence bounds any single silence segment
func WithMaxSilence(d time.Duration) Option {
	return func(c *Concatenator) { c.silence = audiocore.SilenceSynthesizer{MaxDuration: d} }
}

// WithFreeSpace replaces the gopsutil free space probe
func WithFreeSpace(fn FreeSpaceFunc) Option {
	return func(c *Concatenator) { c.freeSpace = fn }
}

// WithKeepSources leaves input files in place after a successful compose.
// The single-file fast path then copies instead of moving.
func WithKeepSources(keep bool) Option {
	return func(c *Concatenator) { c.keep = keep }
}

// New returns a Concatenator
func New(opts ...Option) *Concatenator {
	c := &Concatenator{
		log:       logger.Global().Module(componentExport),
		metrics:   metrics.NoopRecorder{},
		silence:   audiocore.DefaultSilence,
		freeSpace: diskFree,
		move:      conf.MoveFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// plannedSegment is a normalized segment with its resolved payload length
type plannedSegment struct {
	seg    audiocore.Segment
	length int64
}

// Compose writes segments, in order, to dest. Leading and zero length
// silences are dropped. On failure dest is untouched and no input file is
// removed. On success consumed input files are removed unless the
// Concatenator keeps sources.
func (c *Concatenator) Compose(ctx context.Context, segments []audiocore.Segment, format audiocore.AudioFormat, dest string) (*Result, error) {
	start := time.Now()
	result, err := c.compose(ctx, segments, format, dest)

	c.metrics.RecordDuration(operationCompose, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordOperation(operationCompose, metrics.StatusError)
		c.metrics.RecordError(operationCompose, audiocore.ErrorKind(err))
		c.log.Error("composition failed",
			logger.String("dest", dest),
			logger.Int("segments", len(segments)),
			logger.Error(err))
		return nil, err
	}

	c.metrics.RecordOperation(operationCompose, metrics.StatusSuccess)
	if result.Path != "" {
		c.log.Info("composition complete",
			logger.String("path", result.Path),
			logger.Int("segments", result.Segments),
			logger.Int64("payload_bytes", result.PayloadBytes),
			logger.Duration("duration", result.Duration),
			logger.Bool("fast_path", result.FastPath),
			logger.Duration("elapsed", time.Since(start)))
	}
	return result, nil
}

func (c *Concatenator) compose(ctx context.Context, segments []audiocore.Segment, format audiocore.AudioFormat, dest string) (*Result, error) {
	if err := format.Validate(); err != nil {
		return nil, audiocore.NewError(audiocore.ErrFormatMismatch, err, componentExport, "validate_format")
	}

	normalized, err := Normalize(segments)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		c.log.Debug("nothing to compose", logger.String("dest", dest))
		return &Result{}, nil
	}

	if len(normalized) == 1 && normalized[0].IsFile() {
		return c.fastPath(normalized[0], format, dest)
	}

	plan, total, err := c.plan(ctx, normalized, format)
	if err != nil {
		return nil, err
	}
	if err := c.checkFreeSpace(dest, total); err != nil {
		return nil, err
	}
	if err := c.write(ctx, plan, format, total, dest); err != nil {
		return nil, err
	}

	if !c.keep {
		c.removeSources(plan)
	}

	return &Result{
		Path:         dest,
		PayloadBytes: total,
		Duration:     format.DurationForBytes(total),
		Segments:     len(plan),
	}, nil
}

// Normalize validates segments and drops silences that produce no output:
// silences before the first file segment and zero length silences.
func Normalize(segments []audiocore.Segment) ([]audiocore.Segment, error) {
	out := make([]audiocore.Segment, 0, len(segments))
	seenFile := false
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			kind := audiocore.ErrSegmentReadFailed
			if seg.Kind == audiocore.SegmentSilence {
				kind = audiocore.ErrDurationOutOfRange
			}
			return nil, audiocore.NewError(kind, fmt.Errorf("segment %d: %w", i, err), componentExport, "normalize")
		}

		switch seg.Kind {
		case audiocore.SegmentFile:
			seenFile = true
			out = append(out, seg)
		case audiocore.SegmentSilence:
			if !seenFile || seg.Duration == 0 {
				continue
			}
			out = append(out, seg)
		}
	}
	return out, nil
}

// fastPath moves the only file into place. The source header already
// describes exactly the final content.
func (c *Concatenator) fastPath(seg audiocore.Segment, format audiocore.AudioFormat, dest string) (*Result, error) {
	p, err := wavcodec.OpenPayload(seg.Path)
	if err != nil {
		return nil, err
	}
	length := p.Length()
	srcFormat := p.Format()
	_ = p.Close()

	if !srcFormat.Equal(format) {
		return nil, mismatchError(seg.Path, srcFormat, format)
	}
	if err := checkLength(seg, length); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, audiocore.NewError(audiocore.ErrFilesystemMoveFailed, err, componentExport, "fast_path")
	}

	move := c.move
	if c.keep {
		move = copyFile
	}
	if err := move(seg.Path, dest); err != nil {
		return nil, audiocore.NewError(audiocore.ErrFilesystemMoveFailed,
			fmt.Errorf("move %s to %s: %w", seg.Path, dest, err), componentExport, "fast_path")
	}

	return &Result{
		Path:         dest,
		PayloadBytes: length,
		Duration:     format.DurationForBytes(length),
		Segments:     1,
		FastPath:     true,
	}, nil
}

// plan opens every file header and sizes every silence without writing
func (c *Concatenator) plan(ctx context.Context, segments []audiocore.Segment, format audiocore.AudioFormat) ([]plannedSegment, int64, error) {
	plan := make([]plannedSegment, 0, len(segments))
	var total int64

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, 0, audiocore.NewError(audiocore.ErrDestinationWriteFailed, err, componentExport, "plan")
		}

		var length int64
		switch seg.Kind {
		case audiocore.SegmentFile:
			p, err := wavcodec.OpenPayload(seg.Path)
			if err != nil {
				return nil, 0, err
			}
			length = p.Length()
			srcFormat := p.Format()
			_ = p.Close()

			if !srcFormat.Equal(format) {
				return nil, 0, mismatchError(seg.Path, srcFormat, format)
			}
			if err := checkLength(seg, length); err != nil {
				return nil, 0, err
			}
		case audiocore.SegmentSilence:
			n, err := c.silence.Length(seg.Duration, format)
			if err != nil {
				return nil, 0, err
			}
			length = n
		}

		total += length
		if total > wavcodec.MaxPayload {
			return nil, 0, audiocore.NewError(audiocore.ErrDestinationWriteFailed,
				fmt.Errorf("%w: total exceeds %d bytes", wavcodec.ErrPayloadTooLarge, int64(wavcodec.MaxPayload)),
				componentExport, "plan")
		}
		plan = append(plan, plannedSegment{seg: seg, length: length})
	}
	return plan, total, nil
}

// checkLength rejects a file whose payload disagrees with the length the
// session recorded for it. A zero recorded length accepts any payload.
func checkLength(seg audiocore.Segment, length int64) error {
	if seg.ByteLength > 0 && seg.ByteLength != length {
		return audiocore.NewError(audiocore.ErrSegmentReadFailed,
			fmt.Errorf("%s holds %d payload bytes, expected %d", seg.Path, length, seg.ByteLength),
			componentExport, "check_length")
	}
	return nil
}

func mismatchError(path string, got, want audiocore.AudioFormat) error {
	return audiocore.NewError(audiocore.ErrFormatMismatch,
		fmt.Errorf("%s is %s, session is %s", path, got, want), componentExport, "check_format")
}

func (c *Concatenator) checkFreeSpace(dest string, total int64) error {
	if c.freeSpace == nil {
		return nil
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return audiocore.NewError(audiocore.ErrDestinationWriteFailed, err, componentExport, "check_free_space")
	}

	free, err := c.freeSpace(dir)
	if err != nil {
		c.log.Warn("free space check unavailable", logger.String("dir", dir), logger.Error(err))
		return nil
	}
	if need := uint64(total) + wavcodec.HeaderSize; free < need {
		return audiocore.NewError(audiocore.ErrDestinationWriteFailed,
			fmt.Errorf("need %d bytes in %s, %d free", need, dir, free), componentExport, "check_free_space")
	}
	return nil
}

// write streams the planned segments into a partial file next to dest and
// renames it into place. The partial file is removed on any failure.
func (c *Concatenator) write(ctx context.Context, plan []plannedSegment, format audiocore.AudioFormat, total int64, dest string) (err error) {
	partial := partialPath(dest)
	f, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, outputFilePermissions)
	if err != nil {
		return destinationError("create_partial", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			if rerr := os.Remove(partial); rerr != nil && !os.IsNotExist(rerr) {
				c.log.Warn("failed to remove partial output", logger.String("path", partial), logger.Error(rerr))
			}
		}
	}()

	w := bufio.NewWriterSize(f, writeBufferSize)

	header, err := wavcodec.Encode(format, total)
	if err != nil {
		return destinationError("write_header", err)
	}
	if _, err := w.Write(header); err != nil {
		return destinationError("write_header", err)
	}

	for i, p := range plan {
		if err := ctx.Err(); err != nil {
			return destinationError("write_segment", err)
		}
		c.log.Trace("writing segment", logger.Int("index", i), logger.String("segment", p.seg.String()))

		switch p.seg.Kind {
		case audiocore.SegmentFile:
			if err := copyPayload(w, p); err != nil {
				return err
			}
		case audiocore.SegmentSilence:
			if _, err := c.silence.WriteTo(w, p.seg.Duration, format); err != nil {
				return destinationError("write_silence", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return destinationError("flush", err)
	}
	if err := f.Sync(); err != nil {
		return destinationError("sync", err)
	}
	if err := f.Close(); err != nil {
		return destinationError("close", err)
	}
	if err := os.Rename(partial, dest); err != nil {
		return destinationError("rename", err)
	}
	return nil
}

// copyPayload copies exactly p.length payload bytes of a file segment
func copyPayload(w io.Writer, p plannedSegment) error {
	src, err := wavcodec.OpenPayload(p.seg.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	if src.Length() != p.length {
		return audiocore.NewError(audiocore.ErrSegmentReadFailed,
			fmt.Errorf("%s changed during composition", p.seg.Path), componentExport, "copy_payload")
	}

	n, err := io.CopyN(w, src, p.length)
	if err != nil {
		if n < p.length && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			return audiocore.NewError(audiocore.ErrSegmentReadFailed,
				fmt.Errorf("%s: read %d of %d bytes: %w", p.seg.Path, n, p.length, err), componentExport, "copy_payload")
		}
		return destinationError("copy_payload", err)
	}
	return nil
}

func destinationError(operation string, err error) error {
	return audiocore.NewError(audiocore.ErrDestinationWriteFailed, err, componentExport, operation)
}

// partialPath returns a hidden sibling of dest
func partialPath(dest string) string {
	dir, base := filepath.Split(dest)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.partial", base, uuid.NewString()[:8]))
}

// removeSources deletes consumed file segments. Failures are logged only;
// the output is already durable.
func (c *Concatenator) removeSources(plan []plannedSegment) {
	var result *multierror.Error
	for _, p := range plan {
		if !p.seg.IsFile() {
			continue
		}
		if err := os.Remove(p.seg.Path); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		c.log.Warn("failed to remove consumed segment files", logger.Error(err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, outputFilePermissions)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
