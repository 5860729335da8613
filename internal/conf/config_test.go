package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// resetViper isolates tests from each other and from the host config
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(configFileEnv, "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	resetViper(t)

	data, err := getDefaultConfig()
	require.NoError(t, err)
	t.Setenv(configFileEnv, writeConfig(t, string(data)))

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "recordings", settings.Recording.OutputDir)
	assert.Equal(t, SinkRaw, settings.Recording.Sink)
	assert.Equal(t, MaxSilenceDuration, settings.Recording.MaxSilence)
	assert.Equal(t, 5*time.Minute, settings.Recording.FinalizeTimeout)
	assert.Equal(t, 20*time.Millisecond, settings.Capture.PumpInterval)
	assert.Equal(t, "seamrec/signals", settings.Control.MQTT.Topic)
	assert.Equal(t, byte(1), settings.Control.MQTT.QoS)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadOverridesAndEnv(t *testing.T) {
	resetViper(t)

	t.Setenv(configFileEnv, writeConfig(t, `
recording:
  output_dir: /srv/recordings
  max_silence: 2h
control:
  http:
    enabled: true
    listen: ":9000"
`))
	t.Setenv("SEAMREC_RECORDING_SINK", "wav")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/recordings", settings.Recording.OutputDir)
	assert.Equal(t, 2*time.Hour, settings.Recording.MaxSilence)
	assert.Equal(t, SinkWAV, settings.Recording.Sink)
	assert.True(t, settings.Control.HTTP.Enabled)
	assert.Equal(t, ":9000", settings.Control.HTTP.Listen)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultFileNameFormat, settings.Recording.FileNameFormat)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	resetViper(t)

	t.Setenv(configFileEnv, writeConfig(t, `
recording:
  sink: flac
`))

	_, err := Load()
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1)
	assert.Contains(t, ve.Errors[0], "recording.sink")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	if _, err := os.Stat("/etc/seamrec/config.yaml"); err == nil {
		t.Skip("system config present")
	}
	resetViper(t)

	settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SinkRaw, settings.Recording.Sink)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".config", appDirName, "config.yaml"))
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)

	data, err := getDefaultConfig()
	require.NoError(t, err)
	t.Setenv(configFileEnv, writeConfig(t, string(data)))

	settings, err := Load()
	require.NoError(t, err)
	settings.Recording.OutputDir = "/tmp/elsewhere"

	out := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(out, settings))

	raw, err := os.ReadFile(out) //nolint:gosec // test path
	require.NoError(t, err)

	var decoded Settings
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	assert.Equal(t, "/tmp/elsewhere", decoded.Recording.OutputDir)
	assert.Equal(t, settings.Recording.MaxSilence, decoded.Recording.MaxSilence)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.temp")
	dst := filepath.Join(dir, "b.wav")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	require.NoError(t, MoveFile(src, dst))

	assert.NoFileExists(t, src)
	content, err := os.ReadFile(dst) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	require.Error(t, MoveFile(filepath.Join(dir, "missing"), dst))
}

func TestEffectiveTempDir(t *testing.T) {
	r := RecordingSettings{OutputDir: "out"}
	assert.Equal(t, "out", r.EffectiveTempDir())
	r.TempDir = "tmp"
	assert.Equal(t, "tmp", r.EffectiveTempDir())
}
