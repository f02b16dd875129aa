// Package executor runs tool binaries as subprocesses.
//
// A sync execution runs the command line through the platform shell with an
// optional timeout and returns stdout. An async execution runs the binary
// directly, streams each output line to the caller as it arrives, and
// returns the combined output. Every execution is tagged with a fresh group
// id so that all of its events can be correlated.
package executor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/metrics"
)

// Execution modes, as recorded in metrics.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// BinaryResolver locates a tool binary, fetching it when needed.
// *artifact.Store implements it.
type BinaryResolver interface {
	EnsureBinary(ctx context.Context, toolkitID, toolID, binaryName string, skip bool) (string, error)
}

// Options controls how a command runs.
type Options struct {
	// Async streams output through the request callbacks instead of running
	// the command line through the shell. The zero value runs sync.
	Async bool
	// Cwd is the working directory. Empty means the current one.
	Cwd string
	// Timeout bounds a sync execution. Zero means no limit.
	Timeout time.Duration
}

// Progress is passed to Request.OnProgress during async executions.
type Progress struct {
	Status     string `json:"status"`
	Percentage int    `json:"percentage,omitempty"`
}

// Progress statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Request describes one execution.
type Request struct {
	Toolkit    string
	Tool       string
	BinaryName string
	Args       []string
	Options    Options

	// OnProgress and OnOutput are only used in async mode. They are called
	// on the goroutine that called Run.
	OnProgress func(Progress)
	OnOutput   func(line string, isStderr bool)

	// SkipBinaryDownload runs BinaryName as given, typically resolved
	// through PATH, without consulting the toolkit.
	SkipBinaryDownload bool
}

// Result is the outcome of a successful execution.
type Result struct {
	// Output is stdout for sync executions and the combined stdout and
	// stderr lines for async ones.
	Output   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
	Command  string
	GroupID  string
}

// Config configures an Executor.
type Config struct {
	// Store resolves binaries. It may be nil when every request sets
	// SkipBinaryDownload.
	Store    BinaryResolver
	Reporter events.Reporter
	Logger   logging.Logger
}

// Executor runs tool commands.
type Executor struct {
	store    BinaryResolver
	reporter events.Reporter
	logger   logging.Logger
	windows  bool
	now      func() time.Time
}

// New creates an Executor.
func New(cfg Config) *Executor {
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = events.Discard
	}
	return &Executor{
		store:    cfg.Store,
		reporter: reporter,
		logger:   logging.OrNoop(cfg.Logger),
		windows:  runtime.GOOS == "windows",
		now:      time.Now,
	}
}

var errNoStore = errors.New("no artifact store configured")

// Run resolves the request's binary and executes it.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	groupID := events.NewGroupID(req.Toolkit, req.Tool)
	ctx = events.ContextWithGroup(ctx, groupID)
	scope := events.ScopeFromContext(ctx, e.reporter, req.Toolkit, req.Tool)

	mode := ModeSync
	if req.Options.Async {
		mode = ModeAsync
	}

	binPath, err := e.resolve(ctx, req)
	if err != nil {
		scope.Report(events.CommandError, map[string]string{
			"binary_name": req.BinaryName,
			"error":       err.Error(),
		})
		metrics.RecordCommand(req.Toolkit, req.Tool, mode, metrics.OutcomeError, 0)
		return nil, &CommandError{Err: err}
	}

	cmdLine := BuildCommandLine(binPath, req.Args, e.windows)
	scope.Report(events.ExecutingCommand, map[string]string{
		"binary_name": req.BinaryName,
		"command":     cmdLine,
	})
	e.logger.Debug("executing command", "command", cmdLine, "mode", mode, "group", groupID)

	var result *Result
	if req.Options.Async {
		result, err = e.runAsync(ctx, scope, binPath, cmdLine, req)
	} else {
		result, err = e.runSync(ctx, scope, cmdLine, req.Options)
	}

	elapsed := time.Duration(0)
	if result != nil {
		result.Command = cmdLine
		result.GroupID = groupID
		elapsed = result.Elapsed
	}
	metrics.RecordCommand(req.Toolkit, req.Tool, mode, outcome(err), elapsed)

	return result, err
}

func (e *Executor) resolve(ctx context.Context, req Request) (string, error) {
	if req.SkipBinaryDownload {
		return req.BinaryName, nil
	}
	if e.store == nil {
		return "", errNoStore
	}
	return e.store.EnsureBinary(ctx, req.Toolkit, req.Tool, req.BinaryName, false)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrCommandTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrCommandFailed):
		return metrics.OutcomeFailure
	default:
		return metrics.OutcomeError
	}
}
