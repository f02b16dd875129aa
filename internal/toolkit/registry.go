package toolkit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
)

// Options configures a Registry.
type Options struct {
	// Root is the directory holding one subdirectory per toolkit.
	Root string
	// Platform is exposed to Lua documents. Defaults to the running host.
	Platform *platform.Info
	Logger   logging.Logger
}

// Registry loads toolkit documents on first use and caches them by toolkit
// id. Concurrent first loads of the same toolkit share a single parse; the
// published map is read under an RWMutex. Failed loads are not cached.
type Registry struct {
	root   string
	info   *platform.Info
	logger logging.Logger

	mu    sync.RWMutex
	docs  map[string]*Document
	group singleflight.Group
}

// NewRegistry creates a registry rooted at opts.Root.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("Root is required")
	}

	info := opts.Platform
	if info == nil {
		tag := platform.Current(context.Background())
		info = &platform.Info{OS: runtime.GOOS, ArchRaw: runtime.GOARCH, Machine: runtime.GOARCH, Tag: tag}
	}

	return &Registry{
		root:   opts.Root,
		info:   info,
		logger: logging.OrNoop(opts.Logger),
		docs:   make(map[string]*Document),
	}, nil
}

// Root returns the toolkits root directory.
func (r *Registry) Root() string {
	return r.root
}

// ToolkitDir returns the directory of a toolkit.
func (r *Registry) ToolkitDir(toolkitID string) string {
	return filepath.Join(r.root, toolkitID)
}

// Document returns the parsed document of a toolkit, loading it on first use.
func (r *Registry) Document(ctx context.Context, toolkitID string) (*Document, error) {
	r.mu.RLock()
	doc, ok := r.docs[toolkitID]
	r.mu.RUnlock()
	if ok {
		return doc, nil
	}

	v, err, _ := r.group.Do(toolkitID, func() (interface{}, error) {
		// Another caller may have published while we waited for the group.
		r.mu.RLock()
		cached, ok := r.docs[toolkitID]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := r.load(ctx, toolkitID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.docs[toolkitID] = loaded
		r.mu.Unlock()

		r.logger.Debug("toolkit config loaded", "toolkit", toolkitID, "tools", len(loaded.Tools))
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Load returns the configuration of one tool.
func (r *Registry) Load(ctx context.Context, toolkitID, toolID string) (*ToolConfig, error) {
	doc, err := r.Document(ctx, toolkitID)
	if err != nil {
		return nil, err
	}

	cfg := doc.Tools[toolID]
	if cfg == nil {
		return nil, &ToolNotFoundError{Tool: toolID, Toolkit: doc.DisplayName()}
	}
	return cfg, nil
}

// Cached reports whether a toolkit document is already in memory.
func (r *Registry) Cached(toolkitID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.docs[toolkitID]
	return ok
}

var errInvalidToolkitID = errors.New("invalid toolkit id")

// validToolkitID rejects ids that would escape the toolkits root.
func validToolkitID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
