// Package tool wraps the external conversion engines (pdftotext, pdftoppm,
// tesseract, antiword, wpd2text, ffmpeg, ffprobe, file) behind a single
// Runner contract so the packages above it never touch os/exec directly
// and tests can substitute a fake.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// Runner executes an external engine and reports its outcome.
//
// A call always returns: a tool that exits nonzero is data (stderr +
// exit code), not an error. The error return is reserved for invocation
// failure: binary missing, process could not start, context cancelled.
type Runner interface {
	// Run executes argv[0] with argv[1:] as arguments, feeding stdin if
	// non-nil. Stdout and stderr are captured separately.
	Run(ctx context.Context, argv []string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error)

	// LookPath reports whether the named binary is available.
	LookPath(name string) error
}

// InvocationError marks a tool that could not be started at all, as
// opposed to one that ran and failed. The HTTP layer maps it to a
// server error because it indicates a broken environment, not a bad
// document.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsInvocation reports whether err wraps an InvocationError.
func IsInvocation(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// ExecRunner runs engines as subprocesses via exec.CommandContext.
type ExecRunner struct{}

// NewExecRunner returns the production Runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, argv []string, stdin io.Reader) ([]byte, []byte, int, error) {
	if len(argv) == 0 {
		return nil, nil, -1, &InvocationError{Tool: "", Err: errors.New("empty argv")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err == nil {
		return outBuf.Bytes(), errBuf.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Ran but exited nonzero. If the context expired the caller's
		// deadline is the real cause.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitCode(),
				&InvocationError{Tool: argv[0], Err: ctxErr}
		}
		return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitCode(), nil
	}

	return outBuf.Bytes(), errBuf.Bytes(), -1, &InvocationError{Tool: argv[0], Err: err}
}

func (r *ExecRunner) LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return &InvocationError{Tool: name, Err: err}
	}
	return nil
}
