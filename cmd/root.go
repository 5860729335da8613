package cmd

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/seamless-recorder/cmd/compose"
	configcmd "github.com/tphakala/seamless-recorder/cmd/config"
	"github.com/tphakala/seamless-recorder/cmd/inspect"
	"github.com/tphakala/seamless-recorder/cmd/record"
	"github.com/tphakala/seamless-recorder/internal/buildinfo"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/errors"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "seamrec",
		Short:        "Interruption-aware audio recorder",
		SilenceUsage: true,
		Version:      buildinfo.Current().String(),
	}

	if err := setupFlags(rootCmd.PersistentFlags(), settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		record.Command(settings),
		compose.Command(settings),
		inspect.Command(),
		configcmd.Command(settings),
	)

	var central *logger.CentralLogger
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		central, err = initialize(settings)
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		sentry.Flush(2 * time.Second)
		return central.Close()
	}

	return rootCmd
}

// initialize sets up logging and optional error telemetry before any subcommand runs
func initialize(settings *conf.Settings) (*logger.CentralLogger, error) {
	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              settings.Telemetry.DSN,
			Environment:      settings.Telemetry.Environment,
			Release:          "seamrec@" + buildinfo.Current().GetVersion(),
			AttachStacktrace: true,
		}); err != nil {
			return central, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		errors.SetTelemetryReporter(errors.NewSentryReporter(true))
		central.Module("telemetry").Info("error telemetry enabled",
			logger.String("environment", settings.Telemetry.Environment))
	}

	return central, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(flags *pflag.FlagSet, settings *conf.Settings) error {
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&settings.Recording.OutputDir, "output-dir", viper.GetString("recording.output_dir"), "Directory for finished recordings")
	flags.StringVar(&settings.Recording.TempDir, "temp-dir", viper.GetString("recording.temp_dir"), "Directory for segment files (defaults to the output directory)")
	flags.DurationVar(&settings.Recording.MaxSilence, "max-silence", viper.GetDuration("recording.max_silence"), "Longest interruption gap filled with silence")

	if err := viper.BindPFlags(flags); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
