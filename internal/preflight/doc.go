// Package preflight provides readiness checks for the filesystem paths,
// reference data, and external binaries the pipeline depends on.
//
// The daemon runs RunAll at startup to surface misconfiguration before the
// first run is admitted; the CLI health command uses the same checks to
// display environment health.
package preflight
