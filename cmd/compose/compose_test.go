package compose

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/audiocore/wavcodec"
	"github.com/tphakala/seamless-recorder/internal/conf"
)

func TestParseSegments(t *testing.T) {
	segs, err := ParseSegments([]string{"a.wav", "silence:1.5s", "b.wav", "silence:0s"})
	require.NoError(t, err)
	assert.Equal(t, []audiocore.Segment{
		audiocore.FileSegment("a.wav", 0),
		audiocore.SilenceSegment(1500 * time.Millisecond),
		audiocore.FileSegment("b.wav", 0),
		audiocore.SilenceSegment(0),
	}, segs)

	for _, bad := range []string{"silence:", "silence:soon", "silence:-1s"} {
		_, err := ParseSegments([]string{bad})
		assert.Error(t, err, bad)
	}
}

func writeWAV(t *testing.T, path string, n int) {
	t.Helper()
	hdr, err := wavcodec.Encode(audiocore.DefaultFormat(), int64(n))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(hdr, bytes.Repeat([]byte{7}, n)...), 0o600))
}

func TestComposeCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	writeWAV(t, a, 6400)
	writeWAV(t, b, 6400)
	out := filepath.Join(dir, "out.wav")

	settings := &conf.Settings{}
	settings.Recording.MaxSilence = conf.MaxSilenceDuration

	cmd := Command(settings)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"-o", out, "--keep", a, "silence:1s", b})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "Wrote "+out)
	assert.FileExists(t, a)
	assert.FileExists(t, b)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	h, err := wavcodec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 1200*time.Millisecond, h.Duration())
}

func TestComposeCommandRequiresOutput(t *testing.T) {
	cmd := Command(&conf.Settings{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"a.wav"})
	assert.Error(t, cmd.Execute())
}
