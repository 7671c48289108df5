package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag of the build.
	Version = "0.1.0-dev"
	// Commit is the short git SHA, "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns the release tag only.
func Short() string {
	return Version
}

// Full returns the release tag with commit, build time and target platform.
func Full() string {
	return fmt.Sprintf("pricebot-bootstrap %s (commit %s, built %s, %s/%s, %s)",
		Version, Commit, BuildTime, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
