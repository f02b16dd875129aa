package toolkit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
)

const videoToolkit = `{
  "name": "Video Streaming",
  "tools": {
    "ffmpeg": {
      "description": "Convert audio and video",
      "binaries": {
        "linux-x86_64": "https://example.com/ffmpeg_7.1.0-linux-x86_64",
        "macosx-arm64": "https://example.com/ffmpeg_7.1.0-macosx-arm64"
      }
    },
    "faster_whisper": {
      "description": "Transcribe audio",
      "binaries": {"linux-x86_64": "https://example.com/fw_1.0.0-linux-x86_64"},
      "resources": {
        "model": ["https://huggingface.co/m/resolve/main/model.bin?download=true", "https://huggingface.co/m/resolve/main/config.json"]
      }
    }
  }
}`

func writeDoc(t *testing.T, root, toolkitID, file, content string) {
	t.Helper()
	dir := filepath.Join(root, toolkitID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func newTestRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	reg, err := NewRegistry(Options{
		Root:     root,
		Platform: &platform.Info{OS: "linux", Arch: "amd64", Machine: "x86_64", Tag: platform.TagLinuxX86_64},
	})
	require.NoError(t, err)
	return reg
}

func TestNewRegistry_RequiresRoot(t *testing.T) {
	_, err := NewRegistry(Options{})
	assert.Error(t, err)
}

func TestRegistry_Load(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "video_streaming", FileJSON, videoToolkit)
	reg := newTestRegistry(t, root)

	cfg, err := reg.Load(context.Background(), "video_streaming", "ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, "Convert audio and video", cfg.Description)
	assert.Equal(t, "https://example.com/ffmpeg_7.1.0-linux-x86_64", cfg.Binaries[platform.TagLinuxX86_64])

	cfg, err = reg.Load(context.Background(), "video_streaming", "faster_whisper")
	require.NoError(t, err)
	assert.Len(t, cfg.Resources["model"], 2)
}

func TestRegistry_ConfigNotFound(t *testing.T) {
	root := t.TempDir()
	reg := newTestRegistry(t, root)

	_, err := reg.Load(context.Background(), "missing_toolkit", "ffmpeg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	var cnf *ConfigNotFoundError
	require.True(t, errors.As(err, &cnf))
	wantPath := filepath.Join(root, "missing_toolkit", FileJSON)
	assert.Equal(t, wantPath, cnf.Path)
	assert.Contains(t, err.Error(), wantPath)
}

func TestRegistry_ConfigNotFound_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"invalid json", FileJSON, `{"name": "broken",`},
		{"json array", FileJSON, `[1, 2, 3]`},
		{"empty json", FileJSON, ``},
		{"invalid yaml", FileYAML, "name: [unclosed"},
		{"lua syntax error", FileLua, `toolkit = {`},
		{"lua without toolkit table", FileLua, `x = 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeDoc(t, root, "tk", tt.file, tt.content)
			reg := newTestRegistry(t, root)

			_, err := reg.Load(context.Background(), "tk", "tool")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigNotFound), "got %v", err)
			assert.Contains(t, err.Error(), filepath.Join(root, "tk", tt.file))
			assert.False(t, reg.Cached("tk"), "failed loads must not be cached")
		})
	}
}

func TestRegistry_InvalidToolkitID(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())

	for _, id := range []string{"", "..", "../etc", "a/b", `a\b`} {
		_, err := reg.Document(context.Background(), id)
		assert.True(t, errors.Is(err, ErrConfigNotFound), "id %q: got %v", id, err)
	}
}

func TestRegistry_ToolNotFound_UsesDisplayName(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "video_streaming", FileJSON, videoToolkit)
	reg := newTestRegistry(t, root)

	_, err := reg.Load(context.Background(), "video_streaming", "ytdlp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.Equal(t, "tool 'ytdlp' not found in toolkit 'Video Streaming'", err.Error())
}

func TestRegistry_ToolNotFound_UnnamedToolkit(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "tk", FileJSON, `{"tools": {}}`)
	reg := newTestRegistry(t, root)

	_, err := reg.Load(context.Background(), "tk", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'unknown'")
}

func TestRegistry_CachesPerToolkit(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "video_streaming", FileJSON, videoToolkit)
	reg := newTestRegistry(t, root)
	ctx := context.Background()

	_, err := reg.Load(ctx, "video_streaming", "ffmpeg")
	require.NoError(t, err)
	assert.True(t, reg.Cached("video_streaming"))

	// The file is gone, but the cached document still serves other tools.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "video_streaming")))

	cfg, err := reg.Load(ctx, "video_streaming", "faster_whisper")
	require.NoError(t, err)
	assert.Equal(t, "Transcribe audio", cfg.Description)
}

func TestRegistry_ConcurrentFirstLoad(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "video_streaming", FileJSON, videoToolkit)
	reg := newTestRegistry(t, root)

	const workers = 16
	docs := make([]*Document, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := reg.Document(context.Background(), "video_streaming")
			if err != nil {
				t.Errorf("Document() error = %v", err)
				return
			}
			docs[i] = doc
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, docs[0], docs[i], "every caller should see the published document")
	}
}

func TestRegistry_YAMLDocument(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "ops", FileYAML, `
name: Operating System Control
tools:
  bash:
    description: Run shell commands
  ytdlp:
    description: Download media
    binaries:
      linux-x86_64: https://example.com/yt-dlp_2025.1.1-linux-x86_64
    checksums:
      linux-x86_64: abc123
`)
	reg := newTestRegistry(t, root)

	cfg, err := reg.Load(context.Background(), "ops", "ytdlp")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/yt-dlp_2025.1.1-linux-x86_64", cfg.Binaries[platform.TagLinuxX86_64])
	assert.Equal(t, "abc123", cfg.Checksums[platform.TagLinuxX86_64])

	_, err = reg.Load(context.Background(), "ops", "bash")
	require.NoError(t, err)
}

func TestRegistry_JSONPreferredOverOtherFormats(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "tk", FileJSON, `{"name": "from json", "tools": {"a": {"description": "json"}}}`)
	writeDoc(t, root, "tk", FileYAML, "name: from yaml\ntools:\n  a:\n    description: yaml\n")
	reg := newTestRegistry(t, root)

	doc, err := reg.Document(context.Background(), "tk")
	require.NoError(t, err)
	assert.Equal(t, "from json", doc.Name)
}

func TestResolveBinaryURL(t *testing.T) {
	cfg := &ToolConfig{Binaries: map[platform.Tag]string{
		platform.TagLinuxX86_64: "https://example.com/a",
		platform.TagWindowsAMD64: "",
	}}

	tests := []struct {
		name   string
		cfg    *ToolConfig
		tag    platform.Tag
		want   string
		wantOK bool
	}{
		{"present", cfg, platform.TagLinuxX86_64, "https://example.com/a", true},
		{"absent", cfg, platform.TagMacOSARM64, "", false},
		{"empty string", cfg, platform.TagWindowsAMD64, "", false},
		{"nil config", nil, platform.TagLinuxX86_64, "", false},
		{"no binaries", &ToolConfig{}, platform.TagLinuxX86_64, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveBinaryURL(tt.cfg, tt.tag)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestResourceURLs(t *testing.T) {
	cfg := &ToolConfig{Resources: map[string][]string{
		"model": {"https://example.com/a.bin"},
		"empty": {},
	}}

	urls, ok := ResourceURLs(cfg, "model")
	assert.True(t, ok)
	assert.Equal(t, []string{"https://example.com/a.bin"}, urls)

	_, ok = ResourceURLs(cfg, "empty")
	assert.False(t, ok)

	_, ok = ResourceURLs(cfg, "missing")
	assert.False(t, ok)
}
