//go:build windows

package executor

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand wraps cmdLine in cmd.exe. cmd.exe does not follow the
// CommandLineToArgvW rules os/exec quotes for, so the raw command line is
// handed over verbatim. /C strips the outer pair of quotes.
func shellCommand(ctx context.Context, cmdLine string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "cmd")
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: `cmd /C "` + cmdLine + `"`}
	return cmd
}
