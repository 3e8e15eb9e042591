// Package config loads, normalizes, and validates Strand configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STAR_GENOME_DIR and GTF_PATH. The Config type centralizes every knob the
// daemon and CLI need, so work/storage directories, reference locations, and
// external tool names are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths, canonical log formats, and clear validation
// errors.
package config
