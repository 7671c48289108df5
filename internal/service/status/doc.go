// Package status reports the record of the last bootstrap run.
package status
