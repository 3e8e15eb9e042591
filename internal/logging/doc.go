// Package logging centralizes slog logger construction for the daemon and CLI.
//
// It provides a JSON handler for machine consumption and a compact console
// handler for interactive use, shared attribute helpers, standardized field
// key constants, and context-derived run/stage/correlation annotation.
package logging
