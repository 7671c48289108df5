// Package handoff passes control from the bootstrapper to the interpreter
// running the fetched script.
package handoff
