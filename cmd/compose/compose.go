// Package compose implements offline concatenation of WAV segments.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/export"
	"github.com/tphakala/seamless-recorder/internal/audiocore/wavcodec"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

const silencePrefix = "silence:"

// Command creates the compose command
func Command(settings *conf.Settings) *cobra.Command {
	var (
		output string
		keep   bool
	)

	cmd := &cobra.Command{
		Use:   "compose -o out.wav <segment>...",
		Short: "Concatenate WAV files and silences into one file",
		Long: "Concatenate PCM WAV files in order. A segment of the form silence:<duration> " +
			"(for example silence:3s) inserts that much silence. Inputs are removed on success unless --keep is set.",
		Example: "  seamrec compose -o take.wav part1.wav silence:3s part2.wav",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := ParseSegments(args)
			if err != nil {
				return err
			}
			format, err := segmentFormat(segments)
			if err != nil {
				return err
			}

			c := export.New(
				export.WithLogger(logger.Global().Module("export")),
				export.WithMaxSilence(settings.Recording.MaxSilence),
				export.WithKeepSources(keep),
			)
			res, err := c.Compose(cmd.Context(), segments, format, output)
			if err != nil {
				return err
			}
			if res.Path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to compose")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d segments)\n",
				res.Path, res.Duration.Round(time.Millisecond), res.Segments)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output WAV file")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep input files after composing")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// ParseSegments turns command arguments into a segment log
func ParseSegments(args []string) ([]audiocore.Segment, error) {
	segments := make([]audiocore.Segment, 0, len(args))
	for _, arg := range args {
		if rest, ok := strings.CutPrefix(arg, silencePrefix); ok {
			d, err := time.ParseDuration(rest)
			if err != nil {
				return nil, fmt.Errorf("invalid silence %q: %w", arg, err)
			}
			if d < 0 {
				return nil, fmt.Errorf("invalid silence %q: negative duration", arg)
			}
			segments = append(segments, audiocore.SilenceSegment(d))
			continue
		}
		segments = append(segments, audiocore.FileSegment(arg, 0))
	}
	return segments, nil
}

// segmentFormat takes the output format from the first file segment
func segmentFormat(segments []audiocore.Segment) (audiocore.AudioFormat, error) {
	for _, seg := range segments {
		if !seg.IsFile() {
			continue
		}
		p, err := wavcodec.OpenPayload(seg.Path)
		if err != nil {
			return audiocore.AudioFormat{}, err
		}
		format := p.Format()
		if err := p.Close(); err != nil {
			return audiocore.AudioFormat{}, err
		}
		return format, nil
	}
	return audiocore.DefaultFormat(), nil
}
