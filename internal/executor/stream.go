package executor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
)

// maxLineSize caps a single streamed output line.
const maxLineSize = 1024 * 1024

type outputLine struct {
	text     string
	isStderr bool
}

func (e *Executor) runAsync(ctx context.Context, scope *events.Scope, binPath, cmdLine string, req Request) (*Result, error) {
	cmd := exec.CommandContext(ctx, binPath, req.Args...)
	cmd.Dir = req.Options.Cwd
	cmd.WaitDelay = waitDelay

	// Output is copied through in-process pipes rather than StdoutPipe so
	// that Wait owns the copying and WaitDelay can cut off a descendant
	// that keeps the descriptors open after the binary exits.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := e.now()
	if err := cmd.Start(); err != nil {
		return nil, e.asyncError(scope, cmdLine, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		stdoutW.Close()
		stderrW.Close()
		waitErr <- err
	}()

	lines := make(chan outputLine)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(&wg, stdoutR, false, lines)
	go scanLines(&wg, stderrR, true, lines)
	go func() {
		wg.Wait()
		close(lines)
	}()

	var combined, errOut strings.Builder
	for line := range lines {
		combined.WriteString(line.text)
		combined.WriteByte('\n')
		if line.isStderr {
			errOut.WriteString(line.text)
			errOut.WriteByte('\n')
		}

		if req.OnOutput != nil {
			req.OnOutput(line.text, line.isStderr)
		}
		if !line.isStderr && req.OnProgress != nil {
			req.OnProgress(Progress{Status: StatusRunning})
		}
	}

	err := <-waitErr
	elapsed := e.now().Sub(start)
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}

	if err == nil {
		scope.Report(events.CommandCompleted, map[string]string{
			"command":        cmdLine,
			"execution_time": formatMillis(elapsed),
		})
		if req.OnProgress != nil {
			req.OnProgress(Progress{Status: StatusCompleted, Percentage: 100})
		}
		return &Result{
			Output:  combined.String(),
			Stderr:  errOut.String(),
			Elapsed: elapsed,
		}, nil
	}

	var exitErr *exec.ExitError
	if ctx.Err() == nil && errors.As(err, &exitErr) {
		scope.Report(events.CommandFailed, map[string]string{
			"command":        cmdLine,
			"exit_code":      strconv.Itoa(exitErr.ExitCode()),
			"execution_time": formatMillis(elapsed),
		})
		return nil, &CommandFailedError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   errOut.String(),
			Output:   combined.String(),
			Elapsed:  elapsed,
		}
	}

	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return nil, e.asyncError(scope, cmdLine, err)
}

func (e *Executor) asyncError(scope *events.Scope, cmdLine string, err error) error {
	scope.Report(events.CommandError, map[string]string{
		"command": cmdLine,
		"error":   err.Error(),
	})
	return &CommandError{Err: err}
}

// scanLines forwards each line of r to out until r is exhausted.
func scanLines(wg *sync.WaitGroup, r io.Reader, isStderr bool, out chan<- outputLine) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		out <- outputLine{text: scanner.Text(), isStderr: isStderr}
	}
	// Drain anything past an oversized line so the process never blocks
	// on a full pipe.
	io.Copy(io.Discard, r)
}
