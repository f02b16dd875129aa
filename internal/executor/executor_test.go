package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
)

type fakeStore struct {
	path  string
	err   error
	calls int
	group string
}

func (f *fakeStore) EnsureBinary(ctx context.Context, toolkitID, toolID, binaryName string, skip bool) (string, error) {
	f.calls++
	f.group = events.GroupFromContext(ctx)
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func newTestExecutor(store BinaryResolver) (*Executor, *events.Recorder) {
	rec := &events.Recorder{}
	return New(Config{Store: store, Reporter: rec}), rec
}

func shRequest(script string, opts Options) Request {
	return Request{
		Toolkit:            "tk",
		Tool:               "shell",
		BinaryName:         "sh",
		Args:               []string{"-c", script},
		Options:            opts,
		SkipBinaryDownload: true,
	}
}

func TestRun_SyncSuccess(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	res, err := e.Run(context.Background(), shRequest("echo hello; echo warn >&2", Options{}))
	require.NoError(t, err)

	assert.Equal(t, "hello\n", res.Output)
	assert.Equal(t, "warn\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, strings.HasPrefix(res.GroupID, "tk_shell_"))
	assert.Equal(t, `"sh" -c echo\ hello\;\ echo\ warn\ \>\&2`, res.Command)

	assert.Equal(t, []string{events.ExecutingCommand, events.CommandCompleted}, rec.Keys())
	for _, ev := range rec.Events() {
		assert.Equal(t, res.GroupID, ev.Core.ToolGroupID)
	}

	ev, _ := rec.Find(events.CommandCompleted)
	assert.True(t, strings.HasSuffix(ev.Data["execution_time"], "ms"))
}

func TestRun_SyncMultiLineScript(t *testing.T) {
	skipOnWindows(t)
	e, _ := newTestExecutor(nil)

	res, err := e.Run(context.Background(), shRequest("echo one\n# note\necho two", Options{}))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", res.Output)
}

func TestRun_SyncFailure(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	_, err := e.Run(context.Background(), shRequest("echo oops >&2; exit 3", Options{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))

	var failed *CommandFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 3, failed.ExitCode)
	assert.Equal(t, "oops\n", failed.Stderr)
	assert.Contains(t, err.Error(), "exit code 3")

	ev, ok := rec.Find(events.CommandFailed)
	require.True(t, ok)
	assert.Equal(t, "3", ev.Data["exit_code"])
	assert.Equal(t, "oops\n", ev.Data["error"])
}

func TestRun_SyncFailureWithoutStderr(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	_, err := e.Run(context.Background(), shRequest("exit 1", Options{}))
	require.Error(t, err)

	ev, _ := rec.Find(events.CommandFailed)
	assert.Equal(t, "Unknown error", ev.Data["error"])
}

func TestRun_SyncTimeout(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	start := time.Now()
	_, err := e.Run(context.Background(), Request{
		Toolkit:            "tk",
		Tool:               "sleep",
		BinaryName:         "sleep",
		Args:               []string{"5"},
		Options:            Options{Timeout: time.Second},
		SkipBinaryDownload: true,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, elapsed, 4*time.Second, "timeout must stop the command early")

	var timeoutErr *CommandTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, time.Second, timeoutErr.Timeout)
	assert.Equal(t, "command timed out after 1s", err.Error())

	ev, ok := rec.Find(events.CommandTimeout)
	require.True(t, ok)
	assert.Equal(t, "1s", ev.Data["timeout"])
	assert.False(t, rec.Has(events.CommandFailed))
}

func TestRun_SyncCwd(t *testing.T) {
	skipOnWindows(t)
	e, _ := newTestExecutor(nil)
	dir := t.TempDir()

	res, err := e.Run(context.Background(), shRequest("pwd", Options{Cwd: dir}))
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(res.Output))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRun_SyncMissingCwd(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	_, err := e.Run(context.Background(), shRequest("true", Options{Cwd: filepath.Join(t.TempDir(), "missing")}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandError))
	assert.True(t, rec.Has(events.CommandError))
}

func TestRun_ResolvesBinaryThroughStore(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "greet")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"hi $1\"\n"), 0o755))

	store := &fakeStore{path: script}
	e, rec := newTestExecutor(store)

	res, err := e.Run(context.Background(), Request{
		Toolkit:    "tk",
		Tool:       "greet",
		BinaryName: "greet",
		Args:       []string{"there"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there\n", res.Output)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, res.GroupID, store.group, "binary resolution shares the execution group")

	ev, _ := rec.Find(events.ExecutingCommand)
	assert.Equal(t, `"`+script+`" there`, ev.Data["command"])
	assert.Equal(t, "greet", ev.Data["binary_name"])
}

func TestRun_ResolveFailure(t *testing.T) {
	cause := errors.New("no binary URL for platform")
	e, rec := newTestExecutor(&fakeStore{err: cause})

	_, err := e.Run(context.Background(), Request{Toolkit: "tk", Tool: "x", BinaryName: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandError))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, []string{events.CommandError}, rec.Keys())
	assert.NotEmpty(t, rec.Events()[0].Core.ToolGroupID)
}

func TestRun_NoStore(t *testing.T) {
	e, _ := newTestExecutor(nil)

	_, err := e.Run(context.Background(), Request{Toolkit: "tk", Tool: "x", BinaryName: "x"})
	assert.True(t, errors.Is(err, ErrCommandError))
}

func TestRun_AsyncStreamsOutput(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	type seen struct {
		line     string
		isStderr bool
	}
	var lines []seen
	var progress []Progress

	req := shRequest("echo out1; echo err1 >&2; echo out2", Options{Async: true})
	req.OnOutput = func(line string, isStderr bool) {
		lines = append(lines, seen{line, isStderr})
	}
	req.OnProgress = func(p Progress) {
		progress = append(progress, p)
	}

	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	assert.ElementsMatch(t, []seen{{"out1", false}, {"err1", true}, {"out2", false}}, lines)
	assert.Contains(t, res.Output, "out1\n")
	assert.Contains(t, res.Output, "err1\n")
	assert.Contains(t, res.Output, "out2\n")
	assert.Equal(t, "err1\n", res.Stderr)

	require.Len(t, progress, 3, "one running per stdout line plus completion")
	assert.Equal(t, Progress{Status: StatusRunning}, progress[0])
	assert.Equal(t, Progress{Status: StatusCompleted, Percentage: 100}, progress[2])

	assert.Equal(t, []string{events.ExecutingCommand, events.CommandCompleted}, rec.Keys())
}

func TestRun_AsyncStdoutOrderPreserved(t *testing.T) {
	skipOnWindows(t)
	e, _ := newTestExecutor(nil)

	var got []string
	req := shRequest("for i in 1 2 3 4 5; do echo $i; done", Options{Async: true})
	req.OnOutput = func(line string, _ bool) { got = append(got, line) }

	_, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
}

func TestRun_AsyncFailure(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	_, err := e.Run(context.Background(), shRequest("echo partial; exit 2", Options{Async: true}))
	require.Error(t, err)

	var failed *CommandFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 2, failed.ExitCode)
	assert.Equal(t, "partial\n", failed.Output)
	assert.Contains(t, err.Error(), "partial")

	ev, ok := rec.Find(events.CommandFailed)
	require.True(t, ok)
	assert.Equal(t, "2", ev.Data["exit_code"])
}

func TestRun_AsyncLaunchFailure(t *testing.T) {
	e, rec := newTestExecutor(nil)

	_, err := e.Run(context.Background(), Request{
		Toolkit:            "tk",
		Tool:               "ghost",
		BinaryName:         filepath.Join(t.TempDir(), "does-not-exist"),
		Options:            Options{Async: true},
		SkipBinaryDownload: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandError))
	assert.Equal(t, []string{events.ExecutingCommand, events.CommandError}, rec.Keys())
}

func TestRun_AsyncCancelled(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Run(ctx, Request{
		Toolkit:            "tk",
		Tool:               "sleep",
		BinaryName:         "sleep",
		Args:               []string{"5"},
		Options:            Options{Async: true},
		SkipBinaryDownload: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, rec.Has(events.CommandError))
}

func TestRun_AsyncBackgroundDescendantDoesNotBlock(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	var got []string
	req := shRequest("sleep 5 & echo done", Options{Async: true})
	req.OnOutput = func(line string, _ bool) { got = append(got, line) }

	start := time.Now()
	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, []string{"done"}, got)
	assert.Equal(t, "done\n", res.Output)
	assert.Equal(t, []string{events.ExecutingCommand, events.CommandCompleted}, rec.Keys())
}

func TestRun_SyncBackgroundDescendantDoesNotBlock(t *testing.T) {
	skipOnWindows(t)
	e, rec := newTestExecutor(nil)

	start := time.Now()
	res, err := e.Run(context.Background(), shRequest("sleep 5 & echo done", Options{}))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, "done\n", res.Output)
	assert.Equal(t, []string{events.ExecutingCommand, events.CommandCompleted}, rec.Keys())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "command timed out after 1.5s", (&CommandTimeoutError{Timeout: 1500 * time.Millisecond}).Error())
	assert.Equal(t, "command failed with exit code 1: boom", (&CommandFailedError{ExitCode: 1, Stderr: "boom"}).Error())
	assert.Equal(t, "command error: x", (&CommandError{Err: errors.New("x")}).Error())
}
