// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateRecordingSettings(&settings.Recording)...)
	ve.Errors = append(ve.Errors, validateCaptureSettings(&settings.Capture)...)
	ve.Errors = append(ve.Errors, validateControlSettings(&settings.Control)...)

	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry is enabled but no DSN is configured")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRecordingSettings(r *RecordingSettings) []string {
	var errs []string

	if strings.TrimSpace(r.OutputDir) == "" {
		errs = append(errs, "recording.output_dir must not be empty")
	}

	switch r.Sink {
	case SinkRaw, SinkWAV:
	default:
		errs = append(errs, fmt.Sprintf("recording.sink must be %q or %q, got %q", SinkRaw, SinkWAV, r.Sink))
	}

	if r.MaxSilence <= 0 || r.MaxSilence > MaxSilenceDuration {
		errs = append(errs, fmt.Sprintf("recording.max_silence must be between 0 and %s, got %s", MaxSilenceDuration, r.MaxSilence))
	}

	if r.FinalizeTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("recording.finalize_timeout must be at least 1s, got %s", r.FinalizeTimeout))
	}

	if r.FileNameFormat == "" {
		errs = append(errs, "recording.filename_format must not be empty")
	} else if strings.ContainsAny(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(r.FileNameFormat), `/\`) {
		errs = append(errs, "recording.filename_format must not produce path separators")
	}

	return errs
}

func validateCaptureSettings(c *CaptureSettings) []string {
	var errs []string

	frameSize := NumChannels * (BitDepth / 8)
	if c.RingBufferSize < frameSize*SampleRate/10 {
		errs = append(errs, fmt.Sprintf("capture.ring_buffer_size must hold at least 100ms of audio (%d bytes)", frameSize*SampleRate/10))
	}
	if c.PumpInterval <= 0 || c.PumpInterval > time.Second {
		errs = append(errs, "capture.pump_interval must be between 0 and 1s")
	}

	return errs
}

func validateControlSettings(c *ControlSettings) []string {
	var errs []string

	if c.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("control.http.listen is not a valid host:port: %v", err))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "control.mqtt.broker is required when MQTT is enabled")
		} else if u, err := url.Parse(c.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("control.mqtt.broker must be a URL like tcp://host:1883, got %q", c.MQTT.Broker))
		}
		if c.MQTT.Topic == "" {
			errs = append(errs, "control.mqtt.topic is required when MQTT is enabled")
		}
		if c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("control.mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}

	return errs
}
