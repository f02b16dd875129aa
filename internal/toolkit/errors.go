package toolkit

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound is matched by every ConfigNotFoundError.
	ErrConfigNotFound = errors.New("toolkit config not found")
	// ErrToolNotFound is matched by every ToolNotFoundError.
	ErrToolNotFound = errors.New("tool not found in toolkit")
)

// ConfigNotFoundError reports a toolkit document that could not be located
// or parsed.
type ConfigNotFoundError struct {
	Toolkit string
	Path    string
	Err     error
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("failed to load toolkit config from '%s': %v", e.Path, e.Err)
}

func (e *ConfigNotFoundError) Unwrap() error { return e.Err }

func (e *ConfigNotFoundError) Is(target error) bool { return target == ErrConfigNotFound }

// ToolNotFoundError reports a tool the toolkit document does not declare.
// Toolkit holds the document's display name.
type ToolNotFoundError struct {
	Tool    string
	Toolkit string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool '%s' not found in toolkit '%s'", e.Tool, e.Toolkit)
}

func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }
