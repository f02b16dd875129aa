// Package tool binds named tools to the toolrun engine.
//
// A tool belongs to a toolkit and is declared in that toolkit's document
// under its config key: the tool name lower-cased with "tool" removed, so
// "FFmpegTool" reads the "ffmpeg" entry.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/executor"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/toolkit"
)

// Tool is implemented by every tool.
type Tool interface {
	ToolName() string
	Toolkit() string
	Description() string
}

// Engine is the part of the runtime a tool uses. *service.Engine
// implements it.
type Engine interface {
	ToolConfig(ctx context.Context, toolkitID, toolID string) (*toolkit.ToolConfig, error)
	EnsureBinary(ctx context.Context, toolkitID, toolID, binaryName string) (string, error)
	EnsureResource(ctx context.Context, toolkitID, toolID, resource string) (string, error)
	Run(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// ConfigKey returns the toolkit document key of a tool name.
func ConfigKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "tool", "")
}

// Base implements Tool for a declared tool and runs it through an Engine.
// Concrete tools embed it.
type Base struct {
	name        string
	toolkitID   string
	key         string
	description string
	engine      Engine
}

var _ Tool = (*Base)(nil)

// NewBase loads the declaration of name from toolkitID.
func NewBase(ctx context.Context, engine Engine, toolkitID, name string) (*Base, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	key := ConfigKey(name)
	cfg, err := engine.ToolConfig(ctx, toolkitID, key)
	if err != nil {
		return nil, fmt.Errorf("load %s config: %w", name, err)
	}

	return &Base{
		name:        name,
		toolkitID:   toolkitID,
		key:         key,
		description: cfg.Description,
		engine:      engine,
	}, nil
}

func (b *Base) ToolName() string { return b.name }
func (b *Base) Toolkit() string { return b.toolkitID }
func (b *Base) Description() string { return b.description }

// ConfigKey returns the key the tool is declared under.
func (b *Base) ConfigKey() string { return b.key }

// BinaryPath returns the local path of the tool's binary, downloading it on
// first use.
func (b *Base) BinaryPath(ctx context.Context, binaryName string) (string, error) {
	return b.engine.EnsureBinary(ctx, b.toolkitID, b.key, binaryName)
}

// ResourcePath returns the local directory of one of the tool's resource
// bundles, downloading missing files.
func (b *Base) ResourcePath(ctx context.Context, resource string) (string, error) {
	return b.engine.EnsureResource(ctx, b.toolkitID, b.key, resource)
}

// ExecuteRequest is an executor.Request without the tool identity, which
// Execute fills in.
type ExecuteRequest struct {
	BinaryName         string
	Args               []string
	Options            executor.Options
	OnProgress         func(executor.Progress)
	OnOutput           func(line string, isStderr bool)
	SkipBinaryDownload bool
}

// Execute runs one of the tool's binaries.
func (b *Base) Execute(ctx context.Context, req ExecuteRequest) (*executor.Result, error) {
	return b.engine.Run(ctx, executor.Request{
		Toolkit:            b.toolkitID,
		Tool:               b.key,
		BinaryName:         req.BinaryName,
		Args:               req.Args,
		Options:            req.Options,
		OnProgress:         req.OnProgress,
		OnOutput:           req.OnOutput,
		SkipBinaryDownload: req.SkipBinaryDownload,
	})
}
