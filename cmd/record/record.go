// Package record implements the record command: live capture into an
// interruption-aware session.
package record

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/capture"
	"github.com/tphakala/seamless-recorder/internal/audiocore/export"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/httpcontroller"
	"github.com/tphakala/seamless-recorder/internal/logger"
	"github.com/tphakala/seamless-recorder/internal/mqtt"
	"github.com/tphakala/seamless-recorder/internal/observability"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

// signalBuffer bounds signals queued between the inputs and the session
const signalBuffer = 16

// Command creates the record command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the capture device until stopped",
		Long: "Record from the capture device into one continuous file. Calls and other " +
			"interruptions pause the recording; call gaps are filled with silence.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	if err := setupFlags(cmd.Flags(), settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(flags *pflag.FlagSet, settings *conf.Settings) error {
	flags.StringVar(&settings.Capture.Device, "device", viper.GetString("capture.device"), "Capture device name or substring (\"default\" for the system default)")
	flags.StringVar(&settings.Recording.Sink, "sink", viper.GetString("recording.sink"), "Segment writer: \"raw\" or \"wav\"")
	flags.StringVar(&settings.Recording.FileNameFormat, "filename-format", viper.GetString("recording.filename_format"), "Go time layout for output file names")
	flags.BoolVar(&settings.Control.Console, "console", viper.GetBool("control.console"), "Read control commands from stdin")
	flags.BoolVar(&settings.Control.HTTP.Enabled, "http", viper.GetBool("control.http.enabled"), "Enable the HTTP control API and metrics endpoint")
	flags.StringVar(&settings.Control.HTTP.Listen, "listen", viper.GetString("control.http.listen"), "Listen address of the HTTP control API")
	flags.BoolVar(&settings.Control.MQTT.Enabled, "mqtt", viper.GetBool("control.mqtt.enabled"), "Receive interruption signals over MQTT")
	flags.StringVar(&settings.Control.MQTT.Broker, "broker", viper.GetString("control.mqtt.broker"), "MQTT broker URL")

	if err := viper.BindPFlags(flags); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings, stdin io.Reader, stdout io.Writer) error {
	log := logger.Global().Module("record")

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	session, err := newSession(settings, m)
	if err != nil {
		return err
	}

	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	signals := make(chan recorder.Signal, signalBuffer)
	format := session.Format()

	device := capture.NewDevice(settings.Capture, format, session.Write)
	g.Go(func() error {
		return device.Run(gctx)
	})
	g.Go(func() error {
		return session.Run(gctx, signals)
	})

	if settings.Control.HTTP.Enabled {
		server := httpcontroller.New(settings.Control.HTTP, session, m.Handler(), settings.Recording.FinalizeTimeout)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}
	if settings.Control.MQTT.Enabled {
		source := mqtt.NewSource(mqtt.ConfigFromSettings(settings))
		g.Go(func() error {
			return source.Run(gctx, signals)
		})
	}

	if err := session.Record(); err != nil {
		cancel()
		return errors.Join(err, ignoreCanceled(g.Wait()))
	}
	fmt.Fprintln(stdout, "Recording. Type \"help\" for commands.")

	stopRequested := make(chan struct{})
	if settings.Control.Console {
		console := &Console{session: session, signals: signals, out: stdout}
		// stdin reads cannot be canceled; the reader is left behind on exit
		go func() {
			if err := console.Run(gctx, stdin); err != nil {
				log.Warn("console input ended", logger.Error(err))
			}
			if console.Stopped() {
				close(stopRequested)
			}
		}()
	}

	select {
	case <-gctx.Done():
	case <-stopRequested:
	}

	stopErr := stopSession(session, settings.Recording.FinalizeTimeout, stdout)
	cancel()
	groupErr := ignoreCanceled(g.Wait())
	session.Wait()

	if overruns := device.Pump().Overruns(); overruns > 0 {
		log.Warn("capture buffer overruns", logger.Int64("bytes", overruns))
	}
	return errors.Join(stopErr, groupErr)
}

func newSession(settings *conf.Settings, m *observability.Metrics) (*recorder.Session, error) {
	sink, err := capture.NewSink(settings.Recording.Sink)
	if err != nil {
		return nil, err
	}

	composer := export.New(
		export.WithLogger(logger.Global().Module("export")),
		export.WithMetrics(m.Recorder),
		export.WithMaxSilence(settings.Recording.MaxSilence),
	)

	outputDir := settings.Recording.OutputDir
	layout := settings.Recording.FileNameFormat
	return recorder.New(recorder.Options{
		Sink:     sink,
		Composer: composer,
		Format:   audiocore.DefaultFormat(),
		DestinationFunc: func(t time.Time) string {
			return export.DestinationPath(outputDir, layout, t)
		},
		TempDir: settings.Recording.EffectiveTempDir(),
		Metrics: m.Recorder,
	})
}

// stopSession finalizes the recording and reports where it went
func stopSession(session *recorder.Session, timeout time.Duration, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := session.Stop(ctx); err != nil {
		return fmt.Errorf("recording was not saved: %w", err)
	}
	if out, ok := session.LastOutputPath(); ok {
		fmt.Fprintf(stdout, "Saved %s\n", out)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
