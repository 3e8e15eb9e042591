package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Invocation describes one external tool launch.
type Invocation struct {
	Binary string
	Args   []string
	// Dir is the working directory for the process. Empty means the
	// daemon's own working directory.
	Dir string
}

// Result captures the outcome of a completed tool process. A non-zero exit
// is reported through ExitCode, not through an error: stage code decides how
// to treat tool failure.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Failed reports whether the tool exited non-zero.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Tail returns the last portion of stderr, trimmed, for error metrics.
func (r Result) Tail(maxBytes int) string {
	trimmed := strings.TrimSpace(r.Stderr)
	if trimmed == "" {
		trimmed = strings.TrimSpace(r.Stdout)
	}
	if maxBytes > 0 && len(trimmed) > maxBytes {
		trimmed = trimmed[len(trimmed)-maxBytes:]
	}
	return trimmed
}

// Runner abstracts external tool execution for testability.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Option configures runner construction helpers.
type Option func(*options)

type options struct {
	runner Runner
}

// WithRunner injects a custom runner (primarily for tests).
func WithRunner(runner Runner) Option {
	return func(o *options) {
		if runner != nil {
			o.runner = runner
		}
	}
}

// NewRunner returns the runner selected by the provided options, defaulting
// to a real process executor.
func NewRunner(opts ...Option) Runner {
	cfg := options{runner: execRunner{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.runner
}

type execRunner struct{}

// Run launches the tool and waits for it to exit, capturing both output
// streams. Launch failures (missing binary, unreadable working directory,
// context cancellation) are errors; tool exit status is data.
func (execRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if strings.TrimSpace(inv.Binary) == "" {
		return Result{}, errors.New("tool binary is required")
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", inv.Binary, err)
	}
	return result, nil
}
