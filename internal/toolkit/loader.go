package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Document file names, in lookup order.
const (
	FileJSON = "toolkit.json"
	FileYAML = "toolkit.yaml"
	FileLua  = "toolkit.lua"
)

type decodeFunc func(ctx context.Context, r *Registry, data []byte) (*Document, error)

var formats = []struct {
	name   string
	decode decodeFunc
}{
	{FileJSON, decodeJSON},
	{FileYAML, decodeYAML},
	{FileLua, decodeLua},
}

// load finds and parses the document of a toolkit. When no candidate exists
// the error names the canonical JSON path.
func (r *Registry) load(ctx context.Context, toolkitID string) (*Document, error) {
	dir := r.ToolkitDir(toolkitID)
	canonical := filepath.Join(dir, FileJSON)

	if !validToolkitID(toolkitID) {
		return nil, &ConfigNotFoundError{Toolkit: toolkitID, Path: canonical, Err: errInvalidToolkitID}
	}

	for _, f := range formats {
		path := filepath.Join(dir, f.name)

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, &ConfigNotFoundError{Toolkit: toolkitID, Path: path, Err: err}
		}

		doc, err := f.decode(ctx, r, data)
		if err != nil {
			return nil, &ConfigNotFoundError{Toolkit: toolkitID, Path: path, Err: err}
		}
		if doc.Tools == nil {
			doc.Tools = map[string]*ToolConfig{}
		}
		return doc, nil
	}

	return nil, &ConfigNotFoundError{Toolkit: toolkitID, Path: canonical, Err: os.ErrNotExist}
}

func decodeJSON(_ context.Context, _ *Registry, data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("toolkit document must be a JSON object")
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &doc, nil
}

func decodeYAML(_ context.Context, _ *Registry, data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &doc, nil
}
