// Package config loads toolrun settings from an optional TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, TOOLRUN_*
// environment variables, and finally command-line flags applied by the
// caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-hclog"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/download"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
)

// Environment variables.
const (
	EnvConfig      = "TOOLRUN_CONFIG"
	EnvToolkitsDir = "TOOLRUN_TOOLKITS_DIR"
	EnvLogLevel    = logging.EnvLogLevel
	EnvJSONLog     = logging.EnvJSONLog
)

// DefaultToolkitsDir is used when nothing else names the toolkits root.
const DefaultToolkitsDir = "bridges/toolkits"

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the resolved configuration of one toolrun process.
type Settings struct {
	ToolkitsDir string
	LogLevel    string
	JSONLog     bool
	// Progress enables download progress lines.
	Progress bool
	// MetricsAddr serves Prometheus metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string

	Download DownloadSettings
	Mirror   MirrorSettings
}

// DownloadSettings configures the downloader.
type DownloadSettings struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
}

// MirrorSettings configures the model-hosting mirror fallback.
type MirrorSettings struct {
	Enabled      bool
	ProbeURL     string
	MirrorURL    string
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		ToolkitsDir: DefaultToolkitsDir,
		LogLevel:    logging.DefaultLevel,
		Progress:    true,
		Download: DownloadSettings{
			Timeout:   download.DefaultTimeout,
			Retries:   download.DefaultRetries,
			UserAgent: download.DefaultUserAgent,
		},
		Mirror: MirrorSettings{
			Enabled:      true,
			ProbeURL:     download.HuggingFaceURL,
			MirrorURL:    download.HuggingFaceMirrorURL,
			ProbeTimeout: download.DefaultProbeTimeout,
			CacheTTL:     download.DefaultProbeCacheTTL,
		},
	}
}

type fileConfig struct {
	ToolkitsDir string         `toml:"toolkits_dir"`
	LogLevel    string         `toml:"log_level"`
	JSONLog     bool           `toml:"json_log"`
	Progress    bool           `toml:"progress"`
	MetricsAddr string         `toml:"metrics_addr"`
	Download    downloadConfig `toml:"download"`
	Mirror      mirrorConfig   `toml:"mirror"`
}

type downloadConfig struct {
	Timeout   string `toml:"timeout"`
	Retries   int    `toml:"retries"`
	UserAgent string `toml:"user_agent"`
}

type mirrorConfig struct {
	Enabled      bool   `toml:"enabled"`
	ProbeURL     string `toml:"probe_url"`
	MirrorURL    string `toml:"mirror_url"`
	ProbeTimeout string `toml:"probe_timeout"`
	CacheTTL     string `toml:"cache_ttl"`
}

// LoadFile reads a TOML settings file over the defaults. Keys absent from
// the file keep their default values.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes TOML settings over the defaults.
func Parse(doc string) (Settings, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Settings{}, fmt.Errorf("%w: unknown keys: %s", ErrInvalidSettings, strings.Join(keys, ", "))
	}

	if meta.IsDefined("toolkits_dir") {
		cfg.ToolkitsDir = strings.TrimSpace(raw.ToolkitsDir)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("json_log") {
		cfg.JSONLog = raw.JSONLog
	}
	if meta.IsDefined("progress") {
		cfg.Progress = raw.Progress
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("download", "timeout") {
		if cfg.Download.Timeout, err = parseDuration("download.timeout", raw.Download.Timeout); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("download", "retries") {
		cfg.Download.Retries = raw.Download.Retries
	}
	if meta.IsDefined("download", "user_agent") {
		cfg.Download.UserAgent = strings.TrimSpace(raw.Download.UserAgent)
	}

	if meta.IsDefined("mirror", "enabled") {
		cfg.Mirror.Enabled = raw.Mirror.Enabled
	}
	if meta.IsDefined("mirror", "probe_url") {
		cfg.Mirror.ProbeURL = strings.TrimSpace(raw.Mirror.ProbeURL)
	}
	if meta.IsDefined("mirror", "mirror_url") {
		cfg.Mirror.MirrorURL = strings.TrimSpace(raw.Mirror.MirrorURL)
	}
	if meta.IsDefined("mirror", "probe_timeout") {
		if cfg.Mirror.ProbeTimeout, err = parseDuration("mirror.probe_timeout", raw.Mirror.ProbeTimeout); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("mirror", "cache_ttl") {
		if cfg.Mirror.CacheTTL, err = parseDuration("mirror.cache_ttl", raw.Mirror.CacheTTL); err != nil {
			return Settings{}, err
		}
	}

	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalidSettings, key, err)
	}
	return d, nil
}

// ApplyEnv overrides s with TOOLRUN_* variables read through getenv.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvToolkitsDir)); v != "" {
		s.ToolkitsDir = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		s.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvJSONLog)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidSettings, EnvJSONLog, v)
		}
		s.JSONLog = b
	}
	return nil
}

// Validate checks s for values no component can work with.
func (s Settings) Validate() error {
	var problems []string

	if s.ToolkitsDir == "" {
		problems = append(problems, "toolkits_dir is empty")
	}
	if hclog.LevelFromString(s.LogLevel) == hclog.NoLevel {
		problems = append(problems, fmt.Sprintf("log_level %q is not a level", s.LogLevel))
	}
	if s.Download.Timeout < 0 {
		problems = append(problems, "download.timeout is negative")
	}
	if s.Download.Retries < 0 {
		problems = append(problems, "download.retries is negative")
	}
	if s.Mirror.Enabled && (s.Mirror.ProbeURL == "" || s.Mirror.MirrorURL == "") {
		problems = append(problems, "mirror is enabled without probe_url and mirror_url")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// Resolve loads the settings for a process: the file named by path, or by
// TOOLRUN_CONFIG when path is empty, then the environment. A missing file
// is an error only when it was named explicitly.
func Resolve(path string) (Settings, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return Settings{}, err
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Settings{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}
