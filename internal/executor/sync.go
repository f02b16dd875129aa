package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"time"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
)

// waitDelay bounds how long Wait keeps reading output after the shell has
// been killed; a grandchild holding the pipes open must not stall a timeout.
const waitDelay = 250 * time.Millisecond

func (e *Executor) runSync(ctx context.Context, scope *events.Scope, cmdLine string, opts Options) (*Result, error) {
	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := shellCommand(runCtx, cmdLine)
	cmd.Dir = opts.Cwd
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := e.now()
	err := cmd.Run()
	elapsed := e.now().Sub(start)
	if errors.Is(err, exec.ErrWaitDelay) {
		// The shell exited cleanly; a background descendant kept the
		// output open past waitDelay.
		err = nil
	}

	if err == nil {
		scope.Report(events.CommandCompleted, map[string]string{
			"command":        cmdLine,
			"execution_time": formatMillis(elapsed),
		})
		return &Result{
			Output:  stdout.String(),
			Stderr:  stderr.String(),
			Elapsed: elapsed,
		}, nil
	}

	if opts.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		scope.Report(events.CommandTimeout, map[string]string{
			"command": cmdLine,
			"timeout": formatSeconds(opts.Timeout),
		})
		return nil, &CommandTimeoutError{Timeout: opts.Timeout}
	}

	var exitErr *exec.ExitError
	if ctx.Err() == nil && errors.As(err, &exitErr) {
		errText := stderr.String()
		if errText == "" {
			errText = "Unknown error"
		}
		scope.Report(events.CommandFailed, map[string]string{
			"command":        cmdLine,
			"error":          errText,
			"exit_code":      strconv.Itoa(exitErr.ExitCode()),
			"execution_time": formatMillis(elapsed),
		})
		return nil, &CommandFailedError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
			Elapsed:  elapsed,
		}
	}

	if ctx.Err() != nil {
		err = ctx.Err()
	}
	scope.Report(events.CommandError, map[string]string{
		"command": cmdLine,
		"error":   err.Error(),
	})
	return nil, &CommandError{Err: err}
}
