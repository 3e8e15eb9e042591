package runstore

import "errors"

var (
	// ErrValidation marks a malformed admission request (no input files).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown run identifier.
	ErrNotFound = errors.New("run not found")
	// ErrRunTerminal marks an attempt to append to a finished or failed run.
	// A correct sequencer never triggers this; it is a contract violation,
	// not a user-facing condition.
	ErrRunTerminal = errors.New("run already terminal")
)
