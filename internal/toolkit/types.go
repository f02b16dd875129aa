// Package toolkit loads and caches toolkit documents: the declarative
// description of each tool's per-platform binary URLs and resource bundles.
//
// A toolkit lives in <root>/<toolkit_id>/ and is described by toolkit.json,
// or alternatively toolkit.yaml or a sandboxed toolkit.lua. Documents are
// parsed once per toolkit id and shared for the life of the Registry.
package toolkit

import (
	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
)

// Document is a parsed toolkit document.
type Document struct {
	// Name is the display name used in user-facing messages.
	Name string `json:"name" yaml:"name"`

	// Keyring is an OpenPGP public keyring, relative to the toolkit
	// directory, used to check binary signatures.
	Keyring string `json:"keyring,omitempty" yaml:"keyring,omitempty"`

	Tools map[string]*ToolConfig `json:"tools" yaml:"tools"`
}

// DisplayName returns Name, or "unknown" when the document has none.
func (d *Document) DisplayName() string {
	if d.Name == "" {
		return "unknown"
	}
	return d.Name
}

// ToolConfig is one declared tool.
type ToolConfig struct {
	Description string                  `json:"description" yaml:"description"`
	Binaries    map[platform.Tag]string `json:"binaries,omitempty" yaml:"binaries,omitempty"`
	Resources   map[string][]string     `json:"resources,omitempty" yaml:"resources,omitempty"`

	// Checksums holds an optional SHA256 hex digest per platform.
	Checksums map[platform.Tag]string `json:"checksums,omitempty" yaml:"checksums,omitempty"`

	// Signatures holds an optional detached signature URL per platform.
	Signatures map[platform.Tag]string `json:"signatures,omitempty" yaml:"signatures,omitempty"`
}

// ResolveBinaryURL returns the binary URL declared for tag. The boolean is
// false when there is none; that is a normal outcome, not an error.
func ResolveBinaryURL(cfg *ToolConfig, tag platform.Tag) (string, bool) {
	if cfg == nil {
		return "", false
	}
	u, ok := cfg.Binaries[tag]
	if !ok || u == "" {
		return "", false
	}
	return u, true
}

// ResourceURLs returns the URLs of the named resource bundle. The boolean is
// false when the resource is absent or declares no URLs.
func ResourceURLs(cfg *ToolConfig, name string) ([]string, bool) {
	if cfg == nil {
		return nil, false
	}
	urls, ok := cfg.Resources[name]
	if !ok || len(urls) == 0 {
		return nil, false
	}
	return urls, true
}
