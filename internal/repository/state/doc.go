// Package state persists the last bootstrap run record as a JSON file.
package state
