package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	// ErrConfigNotFound means no configuration source was found.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrConfigInvalid means the configuration could not be parsed or has the wrong shape.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrVariableResolution means a valueFrom command failed. Always fatal.
	ErrVariableResolution = errors.New("variable resolution failed")

	// ErrStepExecution means a step command exited non-zero or could not be started.
	ErrStepExecution = errors.New("step execution failed")

	// ErrInterrupted means the run stopped scheduling steps because its context ended.
	ErrInterrupted = errors.New("run interrupted")
)

// NotFoundError lists what the locator tried and how to fix it.
type NotFoundError struct {
	Probed []string
	Hints  []string
}

func (e *NotFoundError) Error() string {
	if len(e.Probed) == 0 {
		return ErrConfigNotFound.Error()
	}
	return fmt.Sprintf("%s (looked in: %s)", ErrConfigNotFound, strings.Join(e.Probed, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrConfigNotFound }

// ConfigError names the offending field of an invalid configuration.
// Field is empty for syntax errors.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := ErrConfigInvalid.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match both the kind and the underlying cause.
func (e *ConfigError) Is(target error) bool { return target == ErrConfigInvalid }

func (e *ConfigError) Unwrap() error { return e.Err }

func newConfigError(field, reason string, err error) *ConfigError {
	return &ConfigError{Field: field, Reason: reason, Err: err}
}

// VariableError reports a valueFrom command that failed.
type VariableError struct {
	Name    string
	Command string
	Err     error
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("%s: variable %q (valueFrom %q): %v", ErrVariableResolution, e.Name, e.Command, e.Err)
}

func (e *VariableError) Is(target error) bool { return target == ErrVariableResolution }

func (e *VariableError) Unwrap() error { return e.Err }

// StepError reports a failed step. Index is zero-based document position.
type StepError struct {
	Index    int
	Name     string
	Command  string
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s (exit %d): %q: %v", ErrStepExecution, e.Name, e.ExitCode, e.Command, e.Err)
}

func (e *StepError) Is(target error) bool { return target == ErrStepExecution }

func (e *StepError) Unwrap() error { return e.Err }
