//go:build !windows

package executor

import (
	"context"
	"os/exec"
)

// shellCommand wraps cmdLine in /bin/sh.
func shellCommand(ctx context.Context, cmdLine string) *exec.Cmd {
	return exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
}
