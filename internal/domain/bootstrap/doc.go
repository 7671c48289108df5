// Package bootstrap contains the domain model of a bootstrap run: the
// ordered steps, the outcome of the script fetch and the run record.
package bootstrap
