// Package version holds build-time identifiers, set via -ldflags by the
// release build and left at their defaults otherwise.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
