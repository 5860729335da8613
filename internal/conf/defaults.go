// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", appDirName)

	viper.SetDefault("recording.output_dir", "recordings")
	viper.SetDefault("recording.filename_format", DefaultFileNameFormat)
	viper.SetDefault("recording.temp_dir", "")
	viper.SetDefault("recording.sink", SinkRaw)
	viper.SetDefault("recording.max_silence", MaxSilenceDuration)
	viper.SetDefault("recording.finalize_timeout", 5*time.Minute)

	viper.SetDefault("capture.device", "")
	viper.SetDefault("capture.ring_buffer_size", SampleRate*NumChannels*(BitDepth/8)*4)
	viper.SetDefault("capture.pump_interval", 20*time.Millisecond)

	viper.SetDefault("control.console", true)
	viper.SetDefault("control.http.enabled", false)
	viper.SetDefault("control.http.listen", "127.0.0.1:8090")
	viper.SetDefault("control.mqtt.enabled", false)
	viper.SetDefault("control.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("control.mqtt.topic", "seamrec/signals")
	viper.SetDefault("control.mqtt.client_id", "")
	viper.SetDefault("control.mqtt.username", "")
	viper.SetDefault("control.mqtt.password", "")
	viper.SetDefault("control.mqtt.qos", 1)
	viper.SetDefault("control.mqtt.timeout", 10*time.Second)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/seamrec.log")
	viper.SetDefault("logging.file_output.level", "debug")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")
}
