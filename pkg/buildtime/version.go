// Package buildtime tells which build of folk is running.
package buildtime

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var version string

// Version is the release this binary was built as.
func Version() string {
	return strings.TrimSpace(version)
}

// Revision is the VCS commit the binary was built from, when the
// toolchain recorded one.
func Revision() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

// VersionString is the one-liner `folk version` prints.
func VersionString() string {
	return Version() + " (commit: " + Revision() + ")"
}
