// Package conf provides configuration management for seamrec.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/seamless-recorder/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings contains all configuration options for seamrec.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Main struct {
		Name string `yaml:"name" mapstructure:"name"` // instance name, used as MQTT client id suffix
	} `yaml:"main" mapstructure:"main"`

	Recording RecordingSettings    `yaml:"recording" mapstructure:"recording"`
	Capture   CaptureSettings      `yaml:"capture" mapstructure:"capture"`
	Control   ControlSettings      `yaml:"control" mapstructure:"control"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
}

// RecordingSettings controls where recordings go and how segments are captured
type RecordingSettings struct {
	OutputDir       string        `yaml:"output_dir" mapstructure:"output_dir"`             // final recordings directory
	FileNameFormat  string        `yaml:"filename_format" mapstructure:"filename_format"`   // Go time layout for output names
	TempDir         string        `yaml:"temp_dir" mapstructure:"temp_dir"`                 // per-segment temp files, defaults to OutputDir
	Sink            string        `yaml:"sink" mapstructure:"sink"`                         // "raw" or "wav"
	MaxSilence      time.Duration `yaml:"max_silence" mapstructure:"max_silence"`           // longest gap synthesized on resume
	FinalizeTimeout time.Duration `yaml:"finalize_timeout" mapstructure:"finalize_timeout"` // how long stop waits for composition
}

// CaptureSettings configures the audio capture device
type CaptureSettings struct {
	Device         string        `yaml:"device" mapstructure:"device"`                     // device name substring, empty for system default
	RingBufferSize int           `yaml:"ring_buffer_size" mapstructure:"ring_buffer_size"` // bytes buffered between device callback and session
	PumpInterval   time.Duration `yaml:"pump_interval" mapstructure:"pump_interval"`       // how often buffered audio is delivered
}

// ControlSettings configures the interruption and control inputs
type ControlSettings struct {
	Console bool         `yaml:"console" mapstructure:"console"` // read commands from stdin
	HTTP    HTTPSettings `yaml:"http" mapstructure:"http"`
	MQTT    MQTTSettings `yaml:"mqtt" mapstructure:"mqtt"`
}

// HTTPSettings configures the control API and metrics endpoint
type HTTPSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// MQTTSettings configures the MQTT interruption source
type MQTTSettings struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Broker   string        `yaml:"broker" mapstructure:"broker"`
	Topic    string        `yaml:"topic" mapstructure:"topic"`
	ClientID string        `yaml:"client_id" mapstructure:"client_id"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	QoS      byte          `yaml:"qos" mapstructure:"qos"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TelemetrySettings configures optional Sentry error reporting
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// EffectiveTempDir returns TempDir, falling back to OutputDir
func (r *RecordingSettings) EffectiveTempDir() string {
	if r.TempDir != "" {
		return r.TempDir
	}
	return r.OutputDir
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
// SEAMREC_CONFIG selects an explicit file and skips the search paths.
func initViper() error {
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if explicit := os.Getenv(configFileEnv); explicit != "" {
		viper.SetConfigFile(explicit)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", explicit, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil { //nolint:gosec // config is not secret by default
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded default config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := MoveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
