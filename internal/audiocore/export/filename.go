package export

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/seamless-recorder/internal/conf"
)

// FileExtension is appended to every generated output name
const FileExtension = ".wav"

// GenerateFileName formats timestamp with the Go time layout and appends the
// WAV extension. An empty layout uses conf.DefaultFileNameFormat.
func GenerateFileName(layout string, timestamp time.Time) string {
	if layout == "" {
		layout = conf.DefaultFileNameFormat
	}
	name := timestamp.Format(layout)
	// layouts may not introduce directories
	name = strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(name)
	if !strings.HasSuffix(strings.ToLower(name), FileExtension) {
		name += FileExtension
	}
	return filepath.Clean(name)
}

// DestinationPath returns the output path for a recording started at timestamp
func DestinationPath(outputDir, layout string, timestamp time.Time) string {
	return filepath.Join(outputDir, GenerateFileName(layout, timestamp))
}
