// Package version exposes build information set through -ldflags.
package version

import "runtime/debug"

//nolint:gochecknoglobals // set at link time
var (
	version = ""
	commit  = ""
	date    = ""
)

// GetVersion returns the linked version, the module version recorded in
// the build info, or "dev".
func GetVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// GetCommit returns the linked commit hash, if any.
func GetCommit() string { return commit }

// GetBuildDate returns the linked build date, if any.
func GetBuildDate() string { return date }
