// Package inspect prints the header of WAV files.
package inspect

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/seamless-recorder/internal/audiocore/wavcodec"
	"github.com/tphakala/seamless-recorder/internal/errors"
)

// Command creates the inspect command
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.wav>...",
		Short: "Print format, payload size and duration of WAV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				if err := Describe(cmd.OutOrStdout(), path); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

// Describe writes a one-line summary of the WAV file at path
func Describe(w io.Writer, path string) error {
	p, err := wavcodec.OpenPayload(path)
	if err != nil {
		return err
	}
	defer p.Close()

	format := p.Format()
	fmt.Fprintf(w, "%s: %s, data at %d, %d bytes, %s\n",
		path, format, p.Offset, p.Length(), wavcodec.PayloadDuration(format, p.Length()))
	return nil
}
