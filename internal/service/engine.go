// Package service assembles the toolrun components into one Engine: the
// toolkit registry, the downloader and mirror, the artifact store, the
// progress reporter and the executor, all configured from config.Settings.
package service

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/artifact"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/config"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/download"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/executor"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/progress"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/toolkit"
)

// maxParallelResources bounds concurrent bundle downloads in Prepare.
const maxParallelResources = 2

// Options carries the process-level collaborators of an Engine. Every field
// is optional.
type Options struct {
	Reporter events.Reporter
	Logger   logging.Logger
	// Platform overrides host detection.
	Platform *platform.Info
	// HTTPClient is shared by the downloader and the mirror probe.
	HTTPClient *http.Client
	// ProgressEmit receives download progress lines. Defaults to Logger.Info.
	ProgressEmit func(string)
	Runner       artifact.Runner
	Clock        Clock
}

// Engine runs tools declared in toolkit documents.
type Engine struct {
	settings config.Settings
	registry *toolkit.Registry
	store    *artifact.Store
	exec     *executor.Executor
	logger   logging.Logger
	clock    Clock
}

// New builds an Engine from settings.
func New(settings config.Settings, opts Options) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger := logging.OrNoop(opts.Logger)
	reporter := opts.Reporter
	if reporter == nil {
		reporter = events.Discard
	}

	root, err := filepath.Abs(settings.ToolkitsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve toolkits dir: %w", err)
	}

	registry, err := toolkit.NewRegistry(toolkit.Options{
		Root:     root,
		Platform: opts.Platform,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	retries := settings.Download.Retries
	if retries == 0 {
		// The downloader reads zero as "use the default".
		retries = -1
	}
	downloader := download.NewDownloader(download.Options{
		Timeout:   settings.Download.Timeout,
		Retries:   retries,
		UserAgent: settings.Download.UserAgent,
		Client:    opts.HTTPClient,
		Logger:    logger,
	})

	var mirror *download.Mirror
	if settings.Mirror.Enabled {
		mirror = download.NewMirror(download.MirrorOptions{
			Primary:      settings.Mirror.ProbeURL,
			Mirror:       settings.Mirror.MirrorURL,
			ProbeTimeout: settings.Mirror.ProbeTimeout,
			CacheTTL:     settings.Mirror.CacheTTL,
			Client:       opts.HTTPClient,
			Logger:       logger,
		})
	}

	var reporterLines *progress.Reporter
	if settings.Progress {
		reporterLines = progress.NewReporter(progress.Options{
			Logger: logger,
			Emit:   opts.ProgressEmit,
			Step:   progress.DefaultStep,
		})
	}

	var tag platform.Tag
	if opts.Platform != nil {
		tag = opts.Platform.Tag
	}

	store, err := artifact.NewStore(artifact.Config{
		Registry:   registry,
		Tag:        tag,
		Downloader: downloader,
		Mirror:     mirror,
		Reporter:   reporter,
		Logger:     logger,
		Progress:   reporterLines,
		Runner:     opts.Runner,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &Engine{
		settings: settings,
		registry: registry,
		store:    store,
		exec: executor.New(executor.Config{
			Store:    store,
			Reporter: reporter,
			Logger:   logger,
		}),
		logger: logger,
		clock:  clock,
	}, nil
}

// Settings returns the settings the Engine was built from.
func (e *Engine) Settings() config.Settings {
	return e.settings
}

// Tag returns the platform binaries are resolved for.
func (e *Engine) Tag() platform.Tag {
	return e.store.Tag()
}

// Registry returns the toolkit registry.
func (e *Engine) Registry() *toolkit.Registry {
	return e.registry
}

// Store returns the artifact store.
func (e *Engine) Store() *artifact.Store {
	return e.store
}

// ToolConfig returns the declaration of one tool.
func (e *Engine) ToolConfig(ctx context.Context, toolkitID, toolID string) (*toolkit.ToolConfig, error) {
	return e.registry.Load(ctx, toolkitID, toolID)
}

// EnsureBinary returns the local path of a tool's binary.
func (e *Engine) EnsureBinary(ctx context.Context, toolkitID, toolID, binaryName string) (string, error) {
	return e.store.EnsureBinary(ctx, toolkitID, toolID, binaryName, false)
}

// EnsureResource returns the local directory of a tool's resource bundle.
func (e *Engine) EnsureResource(ctx context.Context, toolkitID, toolID, resource string) (string, error) {
	return e.store.EnsureResourceBundle(ctx, toolkitID, toolID, resource)
}

// Run executes a request.
func (e *Engine) Run(ctx context.Context, req executor.Request) (*executor.Result, error) {
	return e.exec.Run(ctx, req)
}

// ToolInfo summarizes one tool of a toolkit.
type ToolInfo struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Platforms   []platform.Tag `json:"platforms"`
	// Available is true when the tool declares a binary for the Engine's
	// platform.
	Available bool     `json:"available"`
	Resources []string `json:"resources"`
}

// Tools lists the tools of a toolkit sorted by id.
func (e *Engine) Tools(ctx context.Context, toolkitID string) ([]ToolInfo, error) {
	doc, err := e.registry.Document(ctx, toolkitID)
	if err != nil {
		return nil, err
	}

	tag := e.Tag()
	infos := make([]ToolInfo, 0, len(doc.Tools))
	for id, cfg := range doc.Tools {
		if cfg == nil {
			continue
		}
		info := ToolInfo{
			ID:          id,
			Description: cfg.Description,
			Platforms:   []platform.Tag{},
			Resources:   []string{},
		}
		for t, u := range cfg.Binaries {
			if u != "" {
				info.Platforms = append(info.Platforms, t)
			}
		}
		sort.Slice(info.Platforms, func(i, j int) bool { return info.Platforms[i] < info.Platforms[j] })
		_, info.Available = toolkit.ResolveBinaryURL(cfg, tag)

		for name := range cfg.Resources {
			info.Resources = append(info.Resources, name)
		}
		sort.Strings(info.Resources)

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// PrepareResult lists the artifacts made ready by Prepare.
type PrepareResult struct {
	// BinaryPath is empty when the tool has no binary for this platform.
	BinaryPath string
	Resources  map[string]string
	Elapsed    time.Duration
}

// Prepare ensures every artifact a tool declares: its binary when one exists
// for this platform, and all of its resource bundles. Bundles are fetched
// concurrently; the first failure cancels the rest.
func (e *Engine) Prepare(ctx context.Context, toolkitID, toolID string) (*PrepareResult, error) {
	start := e.clock.Now()

	cfg, err := e.registry.Load(ctx, toolkitID, toolID)
	if err != nil {
		return nil, err
	}

	result := &PrepareResult{Resources: make(map[string]string, len(cfg.Resources))}

	if _, ok := toolkit.ResolveBinaryURL(cfg, e.Tag()); ok {
		path, err := e.store.EnsureBinary(ctx, toolkitID, toolID, toolID, false)
		if err != nil {
			return nil, err
		}
		result.BinaryPath = path
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelResources)
	for name := range cfg.Resources {
		g.Go(func() error {
			dir, err := e.store.EnsureResourceBundle(gctx, toolkitID, toolID, name)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Resources[name] = dir
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Elapsed = e.clock.Now().Sub(start)
	e.logger.Debug("tool prepared", "toolkit", toolkitID, "tool", toolID,
		"resources", len(result.Resources), "elapsed", result.Elapsed)
	return result, nil
}
