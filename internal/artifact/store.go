package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/download"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/metrics"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/progress"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/toolkit"
)

// BinsDirName is the per-toolkit artifact directory.
const BinsDirName = "bins"

// Config holds configuration for the Store.
type Config struct {
	// Registry supplies tool declarations. Required.
	Registry *toolkit.Registry
	// Tag selects the platform entry of each tool. Defaults to the host.
	Tag        platform.Tag
	Downloader *download.Downloader
	// Mirror rewrites resource URLs when the primary host is down. Optional.
	Mirror   *download.Mirror
	Reporter events.Reporter
	Logger   logging.Logger
	// Progress prints download progress lines. When nil, downloads block
	// without progress output.
	Progress *progress.Reporter
	// Runner runs helper commands such as xattr. Defaults to os/exec.
	Runner Runner
}

// Store ensures artifacts are present under each toolkit's bins directory.
type Store struct {
	registry   *toolkit.Registry
	tag        platform.Tag
	downloader *download.Downloader
	mirror     *download.Mirror
	reporter   events.Reporter
	logger     logging.Logger
	progress   *progress.Reporter
	runner     Runner
}

// NewStore creates a Store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("Registry is required")
	}

	s := &Store{
		registry:   cfg.Registry,
		tag:        cfg.Tag,
		downloader: cfg.Downloader,
		mirror:     cfg.Mirror,
		reporter:   cfg.Reporter,
		logger:     logging.OrNoop(cfg.Logger),
		progress:   cfg.Progress,
		runner:     cfg.Runner,
	}
	if s.tag == "" {
		s.tag = platform.Current(context.Background())
	}
	if s.downloader == nil {
		s.downloader = download.NewDownloader(download.Options{Logger: cfg.Logger})
	}
	if s.reporter == nil {
		s.reporter = events.Discard
	}
	if s.runner == nil {
		s.runner = execRunner
	}

	return s, nil
}

// Tag returns the platform the Store resolves binaries for.
func (s *Store) Tag() platform.Tag {
	return s.tag
}

// Registry returns the registry backing the Store.
func (s *Store) Registry() *toolkit.Registry {
	return s.registry
}

// BinsDir returns the artifact directory of a toolkit.
func (s *Store) BinsDir(toolkitID string) string {
	return filepath.Join(s.registry.ToolkitDir(toolkitID), BinsDirName)
}

// EnsureBinary returns the path of the tool's binary for the current
// platform, downloading it on first use. With skip set, binaryName is
// returned untouched and nothing is checked; callers use this for
// executables already on PATH.
func (s *Store) EnsureBinary(ctx context.Context, toolkitID, toolID, binaryName string, skip bool) (string, error) {
	if skip {
		return binaryName, nil
	}

	cfg, err := s.registry.Load(ctx, toolkitID, toolID)
	if err != nil {
		return "", err
	}

	scope := events.ScopeFromContext(ctx, s.reporter, toolkitID, toolID)
	tag := string(s.tag)

	rawURL, ok := toolkit.ResolveBinaryURL(cfg, s.tag)
	scope.Report(events.CheckingBinary, map[string]string{
		"binary_name": binaryName,
		"platform":    tag,
	})
	if !ok {
		scope.Report(events.NoBinaryURL, map[string]string{
			"tool_name": toolID,
			"platform":  tag,
		})
		return "", fmt.Errorf("%w: tool '%s' has no binary for '%s'", ErrNoBinaryURL, toolID, tag)
	}

	fileName, err := binaryFileName(rawURL, s.tag)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	binsDir := s.BinsDir(toolkitID)
	if _, err := os.Stat(binsDir); os.IsNotExist(err) {
		scope.Report(events.CreatingBinsDirectory, map[string]string{"bins_dir": binsDir})
	}
	if err := os.MkdirAll(binsDir, 0755); err != nil {
		return "", fmt.Errorf("create bins dir: %w", err)
	}

	binPath := filepath.Join(binsDir, fileName)

	if !download.NonEmptyFile(binPath) {
		if err := s.installBinary(ctx, scope, toolkitID, cfg, rawURL, binaryName, binPath); err != nil {
			return "", err
		}
	} else {
		metrics.RecordDownload(toolkitID, metrics.KindBinary, metrics.OutcomeCached, 0)
	}

	if !s.tag.IsWindows() {
		s.applyPermissions(scope, events.ApplyingPermissions, binPath)
	}

	scope.Report(events.BinaryReady, map[string]string{"binary_path": binPath})
	return binPath, nil
}

// installBinary downloads, verifies and prepares a binary that is not yet on
// disk, then removes older versions of it.
func (s *Store) installBinary(ctx context.Context, scope *events.Scope, toolkitID string, cfg *toolkit.ToolConfig, rawURL, binaryName, binPath string) error {
	scope.Report(events.BinaryNotFound, map[string]string{"binary_path": binPath})
	scope.Report(events.DownloadingFromURL, map[string]string{"url": rawURL})

	size, err := s.fetch(ctx, rawURL, binPath)
	if err != nil {
		s.logger.Error("binary download failed", "url", rawURL, "error", err)
		scope.Report(events.DownloadURLFailed, map[string]string{
			"url":   rawURL,
			"error": err.Error(),
		})
		scope.Report(events.DownloadFailed, map[string]string{
			"binary_name": binaryName,
			"error":       err.Error(),
		})
		metrics.RecordDownload(toolkitID, metrics.KindBinary, metrics.OutcomeFailure, 0)
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, binaryName, err)
	}

	if err := s.verify(ctx, scope, toolkitID, cfg, binPath); err != nil {
		os.Remove(binPath)
		scope.Report(events.DownloadFailed, map[string]string{
			"binary_name": binaryName,
			"error":       err.Error(),
		})
		metrics.RecordDownload(toolkitID, metrics.KindBinary, metrics.OutcomeFailure, 0)
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, binaryName, err)
	}

	scope.Report(events.BinaryDownloaded, map[string]string{"binary_path": binPath})
	metrics.RecordDownload(toolkitID, metrics.KindBinary, metrics.OutcomeSuccess, size)

	if !s.tag.IsWindows() {
		s.applyPermissions(scope, events.MakingExecutable, binPath)
	}
	if s.tag.IsMacOS() {
		s.removeQuarantine(ctx, scope, binPath)
	}

	if deleted := PruneOldVersions(scope, filepath.Dir(binPath), filepath.Base(binPath)); len(deleted) > 0 {
		s.logger.Debug("pruned old versions", "binary", binaryName, "deleted", deleted)
	}

	return nil
}

// EnsureResourceBundle returns the directory holding every file of the
// named resource, downloading whichever files are missing. Files fetched
// before a failure stay on disk, so a retry only fetches the rest.
func (s *Store) EnsureResourceBundle(ctx context.Context, toolkitID, toolID, resource string) (string, error) {
	cfg, err := s.registry.Load(ctx, toolkitID, toolID)
	if err != nil {
		return "", err
	}

	scope := events.ScopeFromContext(ctx, s.reporter, toolkitID, toolID)
	scope.Report(events.CheckingResource, map[string]string{"resource_name": resource})

	urls, ok := toolkit.ResourceURLs(cfg, resource)
	if !ok {
		scope.Report(events.NoResourceURLs, map[string]string{
			"tool_name":     toolID,
			"resource_name": resource,
		})
		return "", fmt.Errorf("%w: resource '%s' of tool '%s'", ErrNoResourceURLs, resource, toolID)
	}

	resourceDir := filepath.Join(s.BinsDir(toolkitID), resource)
	scope.Report(events.CreatingResourceDirectory, map[string]string{
		"resource_path": events.FilePath(resourceDir),
	})
	if err := os.MkdirAll(resourceDir, 0755); err != nil {
		return "", fmt.Errorf("create resource dir: %w", err)
	}

	if bundleComplete(resourceDir, urls) {
		scope.Report(events.ResourceAlreadyExists, map[string]string{
			"resource_name": resource,
			"resource_path": events.FilePath(resourceDir),
		})
		metrics.RecordDownload(toolkitID, metrics.KindResource, metrics.OutcomeCached, 0)
		return resourceDir, nil
	}

	scope.Report(events.DownloadingResource, map[string]string{
		"resource_name": resource,
		"file_count":    fmt.Sprint(len(urls)),
	})

	for _, rawURL := range urls {
		fileName := resourceFileName(rawURL)
		filePath := filepath.Join(resourceDir, fileName)
		if download.NonEmptyFile(filePath) {
			continue
		}

		fetchURL := s.mirror.Rewrite(ctx, rawURL)
		scope.Report(events.DownloadingResourceFile, map[string]string{
			"file_name": fileName,
			"url":       fetchURL,
		})

		size, err := s.fetch(ctx, fetchURL, filePath)
		if err != nil {
			s.logger.Error("resource file download failed", "url", fetchURL, "error", err)
			scope.Report(events.ResourceFileDownloadFailed, map[string]string{
				"file_name": fileName,
				"error":     err.Error(),
			})
			metrics.RecordDownload(toolkitID, metrics.KindResource, metrics.OutcomeFailure, 0)
			return "", &ResourceFileError{Resource: resource, File: fileName, Err: err}
		}

		scope.Report(events.ResourceFileDownloaded, map[string]string{"file_name": fileName})
		metrics.RecordDownload(toolkitID, metrics.KindResource, metrics.OutcomeSuccess, size)
	}

	scope.Report(events.ResourceDownloaded, map[string]string{
		"resource_name": resource,
		"resource_path": events.FilePath(resourceDir),
	})
	return resourceDir, nil
}

// fetch downloads rawURL to dest, printing progress when a Reporter is
// configured, and returns the number of bytes written.
func (s *Store) fetch(ctx context.Context, rawURL, dest string) (int64, error) {
	var (
		state download.State
		err   error
	)

	if s.progress == nil {
		state, err = s.downloader.Transfer(ctx, rawURL, dest)
	} else {
		h := s.downloader.Start(ctx, rawURL, dest)
		trackErr := s.progress.Track(h, filepath.Base(dest))
		state, err = h.Wait()
		if err == nil {
			err = trackErr
		}
	}
	if err != nil {
		return 0, err
	}

	if !download.NonEmptyFile(dest) {
		return 0, download.ErrEmptyFile
	}
	return state.Done, nil
}

// binaryFileName derives the on-disk name of a binary from its URL.
func binaryFileName(rawURL string, tag platform.Tag) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse binary URL: %w", err)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", errors.New("binary URL has no file name: " + rawURL)
	}

	if tag.IsWindows() && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}
	return name, nil
}

// resourceFileName is the last path segment of rawURL with any query
// string removed.
func resourceFileName(rawURL string) string {
	name := rawURL
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return path.Base(name)
}

// bundleComplete reports whether every file of a bundle is on disk with data.
func bundleComplete(dir string, urls []string) bool {
	for _, u := range urls {
		if !download.NonEmptyFile(filepath.Join(dir, resourceFileName(u))) {
			return false
		}
	}
	return true
}
