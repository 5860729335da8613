// Package buildinfo contains build-time metadata separate from user configuration.
//
// Values are injected with
//
//	-ldflags "-X github.com/tphakala/seamless-recorder/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

// Set by the linker
var (
	Version   = ""
	BuildDate = ""
)

// Context contains build-time metadata that is not user-configurable
type Context struct {
	// Version holds the Git version tag from build
	Version string
	// BuildDate is the time when the binary was built
	BuildDate string
}

// Current returns the metadata linked into this binary
func Current() Context {
	return Context{Version: Version, BuildDate: BuildDate}
}

// GetVersion returns the version, or "dev" for unversioned builds
func (c Context) GetVersion() string {
	if c.Version == "" {
		return "dev"
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown"
func (c Context) GetBuildDate() string {
	if c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}

func (c Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}
