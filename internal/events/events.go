// Package events carries the structured status sideband: one Event per
// meaningful engine step, tagged with the toolkit and tool it belongs to and,
// for command executions, a group id correlating every event of one run.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// KeyPrefix namespaces every event key.
const KeyPrefix = "tools."

// Event keys.
const (
	CheckingBinary        = KeyPrefix + "checking_binary"
	NoBinaryURL           = KeyPrefix + "no_binary_url"
	CreatingBinsDirectory = KeyPrefix + "creating_bins_directory"
	BinaryNotFound        = KeyPrefix + "binary_not_found"
	DownloadingFromURL    = KeyPrefix + "downloading_from_url"
	BinaryDownloaded      = KeyPrefix + "binary_downloaded"
	VerifyingBinary       = KeyPrefix + "verifying_binary"
	MakingExecutable      = KeyPrefix + "making_executable"
	RemovingQuarantine    = KeyPrefix + "removing_quarantine"
	QuarantineRemoved     = KeyPrefix + "quarantine_removed"
	QuarantineWarning     = KeyPrefix + "quarantine_warning"
	QuarantineException   = KeyPrefix + "quarantine_exception"
	ApplyingPermissions   = KeyPrefix + "applying_permissions"
	PermissionWarning     = KeyPrefix + "permission_warning"
	BinaryReady           = KeyPrefix + "binary_ready"
	DeletingOldVersion    = KeyPrefix + "deleting_old_version"
	OldVersionDeleted     = KeyPrefix + "old_version_deleted"
	CleanupWarning        = KeyPrefix + "cleanup_warning"
	DownloadFailed        = KeyPrefix + "download_failed"
	DownloadURLFailed     = KeyPrefix + "download_url_failed"

	CheckingResource           = KeyPrefix + "checking_resource"
	NoResourceURLs             = KeyPrefix + "no_resource_urls"
	CreatingResourceDirectory  = KeyPrefix + "creating_resource_directory"
	ResourceAlreadyExists      = KeyPrefix + "resource_already_exists"
	DownloadingResource        = KeyPrefix + "downloading_resource"
	DownloadingResourceFile    = KeyPrefix + "downloading_resource_file"
	ResourceFileDownloaded     = KeyPrefix + "resource_file_downloaded"
	ResourceFileDownloadFailed = KeyPrefix + "resource_file_download_failed"
	ResourceDownloaded         = KeyPrefix + "resource_downloaded"

	ExecutingCommand = KeyPrefix + "executing_command"
	CommandCompleted = KeyPrefix + "command_completed"
	CommandFailed    = KeyPrefix + "command_failed"
	CommandTimeout   = KeyPrefix + "command_timeout"
	CommandError     = KeyPrefix + "command_error"
)

// Core identifies the origin of an event.
type Core struct {
	IsToolOutput bool   `json:"isToolOutput"`
	ToolkitName  string `json:"toolkitName"`
	ToolName     string `json:"toolName"`
	ToolGroupID  string `json:"toolGroupId,omitempty"`
}

// Event is a single sideband message.
type Event struct {
	Key  string            `json:"key"`
	Data map[string]string `json:"data"`
	Core Core              `json:"core"`
}

// Reporter receives events. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ev Event)

// Report calls f(ev).
func (f ReporterFunc) Report(ev Event) {
	f(ev)
}

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// JSONReporter writes one JSON object per line.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONReporter creates a reporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONReporter{enc: enc}
}

// Report encodes ev. Encoding errors are dropped; the sideband is best-effort.
func (r *JSONReporter) Report(ev Event) {
	if ev.Data == nil {
		ev.Data = map[string]string{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(ev)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report appends ev.
func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Keys returns the recorded keys in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.events))
	for i, ev := range r.events {
		keys[i] = ev.Key
	}
	return keys
}

// Has reports whether key was recorded at least once.
func (r *Recorder) Has(key string) bool {
	return r.Count(key) > 0
}

// Count returns how many times key was recorded.
func (r *Recorder) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Key == key {
			n++
		}
	}
	return n
}

// Find returns the first event with key.
func (r *Recorder) Find(key string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Key == key {
			return ev, true
		}
	}
	return Event{}, false
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Scope stamps events with the toolkit and tool they concern.
type Scope struct {
	reporter Reporter
	core     Core
}

// NewScope returns a Scope reporting to r. A nil r discards.
func NewScope(r Reporter, toolkit, tool string) *Scope {
	if r == nil {
		r = Discard
	}
	return &Scope{
		reporter: r,
		core: Core{
			IsToolOutput: true,
			ToolkitName:  toolkit,
			ToolName:     tool,
		},
	}
}

// WithGroup returns a copy of s whose events carry groupID.
func (s *Scope) WithGroup(groupID string) *Scope {
	cp := *s
	cp.core.ToolGroupID = groupID
	return &cp
}

// GroupID returns the correlation id, if any.
func (s *Scope) GroupID() string {
	return s.core.ToolGroupID
}

// Report emits key with data.
func (s *Scope) Report(key string, data map[string]string) {
	if data == nil {
		data = map[string]string{}
	}
	s.reporter.Report(Event{Key: key, Data: data, Core: s.core})
}

type groupKey struct{}

// ContextWithGroup returns a context carrying groupID, so lower layers
// reporting on behalf of one command execution tag their events with it.
func ContextWithGroup(ctx context.Context, groupID string) context.Context {
	return context.WithValue(ctx, groupKey{}, groupID)
}

// GroupFromContext returns the group id stored by ContextWithGroup.
func GroupFromContext(ctx context.Context) string {
	id, _ := ctx.Value(groupKey{}).(string)
	return id
}

// ScopeFromContext is NewScope plus the group id carried by ctx.
func ScopeFromContext(ctx context.Context, r Reporter, toolkit, tool string) *Scope {
	return NewScope(r, toolkit, tool).WithGroup(GroupFromContext(ctx))
}

// NewGroupID returns a fresh correlation id for one command execution.
func NewGroupID(toolkit, tool string) string {
	return fmt.Sprintf("%s_%s_%s", toolkit, tool, uuid.NewString())
}

// FilePath wraps a path in the markers presentation layers turn into links.
func FilePath(path string) string {
	return "[FILE_PATH]" + path + "[/FILE_PATH]"
}
