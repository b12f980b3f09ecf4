package mesh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a CLI command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and captures stdout and stderr. A non-zero
// exit yields a *CLIError carrying both streams.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout, stderr := stdoutBuf.Bytes(), stderrBuf.Bytes()
	if err == nil {
		return stdout, stderr, nil
	}

	cliErr := &CLIError{
		Command: strings.TrimSpace(name + " " + strings.Join(args, " ")),
		Stderr:  string(stderr),
		Err:     err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cliErr.ExitCode = exitErr.ExitCode()
	} else {
		cliErr.ExitCode = -1
	}

	if ctx.Err() == context.DeadlineExceeded {
		cliErr.TimedOut = true
	}

	return stdout, stderr, cliErr
}

// CLIError represents a failed mesh CLI invocation.
type CLIError struct {
	// Command is the full command line that failed
	Command string
	// ExitCode is the process exit code, -1 if it never started
	ExitCode int
	// Stderr is the captured error output
	Stderr string
	// TimedOut is set when the deadline killed the process
	TimedOut bool
	// Underlying error
	Err error
}

func (e *CLIError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s: timed out", e.Command)
	}
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s (exit code %d): %s", e.Command, e.ExitCode, msg)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}
