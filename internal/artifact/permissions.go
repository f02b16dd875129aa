package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
)

// Runner runs an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// setExecutable sets 0755 on path.
func setExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPermissionAdjustment, path, err)
	}
	return nil
}

// applyPermissions makes path executable, reporting a failure as a warning.
func (s *Store) applyPermissions(scope *events.Scope, key, path string) {
	scope.Report(key, map[string]string{"binary_path": path})
	if err := setExecutable(path); err != nil {
		s.logger.Warn("could not make binary executable", "path", path, "error", err)
		scope.Report(events.PermissionWarning, map[string]string{
			"binary_path": path,
			"error":       err.Error(),
		})
	}
}

// removeQuarantine clears the macOS quarantine attribute so Gatekeeper does
// not block the first launch of a downloaded binary. Failures only warn.
func (s *Store) removeQuarantine(ctx context.Context, scope *events.Scope, path string) {
	scope.Report(events.RemovingQuarantine, map[string]string{"binary_path": path})

	out, err := s.runner(ctx, "xattr", "-d", "com.apple.quarantine", path)
	if err == nil {
		scope.Report(events.QuarantineRemoved, map[string]string{"binary_path": path})
		return
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// xattr exits non-zero when the attribute was never set.
		scope.Report(events.QuarantineWarning, map[string]string{
			"binary_path": path,
			"error":       strings.TrimSpace(string(out)),
		})
		return
	}

	s.logger.Warn("quarantine removal failed", "path", path, "error", err)
	scope.Report(events.QuarantineException, map[string]string{
		"binary_path": path,
		"error":       err.Error(),
	})
}
