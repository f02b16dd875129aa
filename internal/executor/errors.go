package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrCommandTimeout matches every CommandTimeoutError.
	ErrCommandTimeout = errors.New("command timed out")
	// ErrCommandFailed matches every CommandFailedError.
	ErrCommandFailed = errors.New("command failed")
	// ErrCommandError matches every CommandError.
	ErrCommandError = errors.New("command error")
)

// CommandFailedError reports a command that ran and exited non-zero.
type CommandFailedError struct {
	ExitCode int
	Stderr   string
	// Output is the combined output buffer of an async execution.
	Output  string
	Elapsed time.Duration
}

func (e *CommandFailedError) Error() string {
	detail := e.Stderr
	if detail == "" {
		detail = e.Output
	}
	return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, detail)
}

func (e *CommandFailedError) Is(target error) bool {
	return target == ErrCommandFailed
}

// CommandTimeoutError reports a sync command killed after its timeout.
type CommandTimeoutError struct {
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return "command timed out after " + formatSeconds(e.Timeout)
}

func (e *CommandTimeoutError) Is(target error) bool {
	return target == ErrCommandTimeout
}

func (e *CommandTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// CommandError reports a command that could not be run at all: the binary
// could not be resolved or started, or the caller cancelled it.
type CommandError struct {
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command error: %v", e.Err)
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandError
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// formatSeconds renders d as "1s", "1.5s".
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
