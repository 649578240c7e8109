// Package device talks to the external rivalcfg tool: battery
// sampling, device name discovery, and setting changes. The tool's
// stdout text and exit status are its entire contract.
package device

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Output captures one finished command invocation. A non-zero exit is
// reported through ExitCode, not an error; errors are reserved for
// spawn and timeout failures.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited cleanly.
func (o Output) Success() bool {
	return o.ExitCode == 0
}

// Runner executes an external command and captures its output. It is
// an interface so tests can substitute canned responses for real
// subprocess spawns.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) (Output, error)
}

// NewRunner returns a Runner that spawns real subprocesses, each
// bounded by the given timeout. On timeout the child is killed and
// ErrTimeout is returned.
func NewRunner(timeout time.Duration) Runner {
	return &execRunner{timeout: timeout}
}

type execRunner struct {
	timeout time.Duration
}

func (r *execRunner) Run(ctx context.Context, program string, args ...string) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch {
	case err == nil:
		return out, nil
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return out, ErrTimeout
	case errors.Is(err, exec.ErrNotFound):
		return out, ErrToolNotFound
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
}
