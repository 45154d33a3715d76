package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner runs one shell command string and returns its stdout.
// A non-zero exit or a launch failure must be reported as an error.
type CommandRunner interface {
	Run(ctx context.Context, command string) (string, error)
}

// ExecError describes a command that exited non-zero or could not be started.
// ExitCode is -1 when the process never ran.
type ExecError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("command exited with status %d", e.ExitCode)
	if e.ExitCode < 0 {
		msg = "command did not complete"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExitCodeOf extracts the exit status carried by err, or -1.
func ExitCodeOf(err error) int {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.ExitCode
	}
	return -1
}

// Executor is responsible for running commands in a shell (sh -c "cmd").
type Executor struct {
	Shell   string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// waitDelay bounds how long a timed-out Run waits for output pipes still held
// open by background children.
const waitDelay = 2 * time.Second

// NewExecutor returns an Executor using sh with no timeout.
func NewExecutor() *Executor {
	return &Executor{Shell: "sh"}
}

// Run executes command and returns its stdout. Stderr is kept for the error.
func (e *Executor) Run(ctx context.Context, command string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = e.Dir
	if e.Timeout > 0 {
		cmd.WaitDelay = waitDelay
	}
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	execErr := &ExecError{Command: command, ExitCode: -1, Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
		execErr.Err = nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		execErr.Err = fmt.Errorf("timed out after %s", e.Timeout)
	}
	return stdout.String(), execErr
}
