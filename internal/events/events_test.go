package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONReporter_OneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf)

	scope := NewScope(r, "video_streaming", "ffmpeg")
	scope.Report(CheckingBinary, map[string]string{"binary_name": "ffmpeg"})
	scope.WithGroup("g1").Report(ExecutingCommand, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first.Key != "tools.checking_binary" {
		t.Errorf("Key = %q, want tools.checking_binary", first.Key)
	}
	if first.Data["binary_name"] != "ffmpeg" {
		t.Errorf("Data = %v", first.Data)
	}
	if !first.Core.IsToolOutput || first.Core.ToolkitName != "video_streaming" || first.Core.ToolName != "ffmpeg" {
		t.Errorf("Core = %+v", first.Core)
	}
	if first.Core.ToolGroupID != "" {
		t.Errorf("ungrouped event has group id %q", first.Core.ToolGroupID)
	}
	if strings.Contains(lines[0], "toolGroupId") {
		t.Errorf("empty group id should be omitted: %s", lines[0])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	core := second["core"].(map[string]any)
	if core["toolGroupId"] != "g1" {
		t.Errorf("toolGroupId = %v, want g1", core["toolGroupId"])
	}
	if _, ok := second["data"].(map[string]any); !ok {
		t.Errorf("nil data should encode as an object: %s", lines[1])
	}
}

func TestScope_WithGroupDoesNotMutate(t *testing.T) {
	rec := &Recorder{}
	base := NewScope(rec, "tk", "tool")
	grouped := base.WithGroup("abc")

	base.Report(BinaryReady, nil)
	grouped.Report(CommandCompleted, nil)

	evs := rec.Events()
	if evs[0].Core.ToolGroupID != "" {
		t.Errorf("base scope picked up group id %q", evs[0].Core.ToolGroupID)
	}
	if evs[1].Core.ToolGroupID != "abc" {
		t.Errorf("grouped scope group id = %q, want abc", evs[1].Core.ToolGroupID)
	}
	if grouped.GroupID() != "abc" {
		t.Errorf("GroupID() = %q", grouped.GroupID())
	}
}

func TestNewScope_NilReporter(t *testing.T) {
	// must not panic
	NewScope(nil, "tk", "tool").Report(BinaryReady, nil)
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	s := NewScope(rec, "tk", "tool")
	s.Report(CheckingBinary, nil)
	s.Report(CleanupWarning, map[string]string{"error": "x"})
	s.Report(CleanupWarning, nil)

	if got := rec.Keys(); len(got) != 3 || got[0] != CheckingBinary {
		t.Errorf("Keys() = %v", got)
	}
	if rec.Count(CleanupWarning) != 2 {
		t.Errorf("Count(CleanupWarning) = %d, want 2", rec.Count(CleanupWarning))
	}
	if !rec.Has(CheckingBinary) || rec.Has(BinaryReady) {
		t.Error("Has() mismatch")
	}
	ev, ok := rec.Find(CleanupWarning)
	if !ok || ev.Data["error"] != "x" {
		t.Errorf("Find() = %+v, %v", ev, ok)
	}

	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Error("Reset() left events behind")
	}
}

func TestNewGroupID(t *testing.T) {
	a := NewGroupID("tk", "ffmpeg")
	b := NewGroupID("tk", "ffmpeg")

	if !strings.HasPrefix(a, "tk_ffmpeg_") {
		t.Errorf("NewGroupID() = %q, want tk_ffmpeg_ prefix", a)
	}
	if a == b {
		t.Error("NewGroupID() returned the same id twice")
	}
}

func TestFilePath(t *testing.T) {
	if got := FilePath("/tmp/a.mp4"); got != "[FILE_PATH]/tmp/a.mp4[/FILE_PATH]" {
		t.Errorf("FilePath() = %q", got)
	}
}

func TestScopeFromContext(t *testing.T) {
	rec := &Recorder{}

	ctx := ContextWithGroup(context.Background(), "tk_echo_1")
	ScopeFromContext(ctx, rec, "tk", "echo").Report(BinaryReady, nil)
	ScopeFromContext(context.Background(), rec, "tk", "echo").Report(BinaryReady, nil)

	evs := rec.Events()
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Core.ToolGroupID != "tk_echo_1" {
		t.Errorf("group id = %q, want tk_echo_1", evs[0].Core.ToolGroupID)
	}
	if evs[1].Core.ToolGroupID != "" {
		t.Errorf("plain context should carry no group id, got %q", evs[1].Core.ToolGroupID)
	}
}
