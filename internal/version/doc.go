// Package version holds the build metadata of pricebot-bootstrap.
//
// Version, Commit and BuildTime are set with -ldflags "-X ..." by release builds.
package version
