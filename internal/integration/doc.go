// Package integration runs the bootstrap end to end against stub package
// managers and a local HTTP server.
package integration
