// Package testutil provides utilities for testing toolrun in isolation.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// Env is an isolated toolrun environment rooted in a temp directory.
type Env struct {
	Root        string
	ToolkitsDir string
	ConfigPath  string
}

// SetupTestEnv creates isolated test directories and points the TOOLRUN_*
// environment variables at them, so tests never touch a real toolkits
// directory or configuration file.
//
// The cleanup function is automatically handled by t.TempDir(),
// so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Root:        tmpDir,
		ToolkitsDir: filepath.Join(tmpDir, "toolkits"),
		ConfigPath:  filepath.Join(tmpDir, "toolrun.toml"),
	}

	t.Setenv("TOOLRUN_TOOLKITS_DIR", env.ToolkitsDir)
	t.Setenv("TOOLRUN_CONFIG", env.ConfigPath)
	t.Setenv("TOOLRUN_LOG_LEVEL", "error")
	t.Setenv("TOOLRUN_JSON_LOG", "")

	if err := os.MkdirAll(env.ToolkitsDir, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", env.ToolkitsDir, err)
	}

	return env
}

// WriteToolkit writes a toolkit document named file (toolkit.json,
// toolkit.yaml or toolkit.lua) for toolkitID under root and returns the
// toolkit directory.
func WriteToolkit(t *testing.T, root, toolkitID, file, content string) string {
	t.Helper()

	dir := filepath.Join(root, toolkitID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create toolkit dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", file, err)
	}
	return dir
}

// FileServer serves fixed bodies by path and counts requests per path.
type FileServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
}

// NewFileServer starts a server answering GET <path> with files[path] and
// 404 for anything else. It is closed when the test ends.
func NewFileServer(t *testing.T, files map[string]string) *FileServer {
	t.Helper()

	fs := &FileServer{files: files, hits: make(map[string]int)}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		body, ok := fs.files[r.URL.Path]
		fs.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(fs.Server.Close)

	return fs
}

// Hits returns how many requests reached path.
func (fs *FileServer) Hits(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

// TotalHits returns the number of requests served.
func (fs *FileServer) TotalHits() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, h := range fs.hits {
		n += h
	}
	return n
}

// Set adds or replaces the body served at path.
func (fs *FileServer) Set(path, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = body
}
