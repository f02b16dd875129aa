package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/executor"
)

// Bash tool identity.
const (
	BashToolkit  = "operating_system_control"
	BashToolName = "BashTool"
)

// DefaultBashTimeout bounds a bash command when none is given.
const DefaultBashTimeout = 30 * time.Second

// Risk grades how much damage a shell command could do.
type Risk string

const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// Patterns are matched as substrings of the lower-cased command.
var (
	dangerousPatterns = []string{
		"rm -rf /",
		"rm -rf /*",
		"mkfs",
		"dd if=",
		"format",
		"fdisk",
		"> /dev/",
		"chmod 777 /",
		"chown -r",
		"kill -9 -1",
		"killall -9",
		"fork()",
		"while true; do",
		"curl | sh",
		"wget | sh",
		"| bash",
		"| sh",
		"eval $(curl",
		"eval $(wget",
	}

	criticalPatterns = []string{
		"rm -rf /",
		"rm -rf /*",
		"mkfs",
		"format",
		"fdisk",
		"kill -9 -1",
	}

	highRiskPatterns = []string{
		"rm -rf",
		"rm -f",
		"chmod 777",
		"chown -r",
		"dd if=",
		"killall",
		"pkill",
		"sudo su",
		"curl | sh",
		"wget | sh",
	}

	mediumRiskPatterns = []string{
		"sudo",
		"rm ",
		"mv ",
		"cp ",
		"chmod",
		"chown",
		"install",
		"apt ",
		"yum ",
		"brew ",
		"pip install",
	}
)

// Bash runs shell commands with the system bash. The binary is never
// downloaded.
type Bash struct {
	*Base
}

// NewBash loads the bash tool declaration.
func NewBash(ctx context.Context, engine Engine) (*Bash, error) {
	base, err := NewBase(ctx, engine, BashToolkit, BashToolName)
	if err != nil {
		return nil, err
	}
	return &Bash{Base: base}, nil
}

// BashOptions controls one bash command. A zero Timeout selects
// DefaultBashTimeout; an empty Cwd selects the current directory.
type BashOptions struct {
	Cwd     string
	Timeout time.Duration
}

// BashResult is the outcome of a bash command. Failures are reported in the
// result, not as errors.
type BashResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"returncode"`
	Command  string `json:"command"`
}

// Run executes command with bash -c.
func (b *Bash) Run(ctx context.Context, command string, opts BashOptions) BashResult {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultBashTimeout
	}
	cwd := opts.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}

	res, err := b.Execute(ctx, ExecuteRequest{
		BinaryName:         "bash",
		Args:               []string{"-c", command},
		Options:            executor.Options{Cwd: cwd, Timeout: timeout},
		SkipBinaryDownload: true,
	})
	if err == nil {
		return BashResult{
			Success: true,
			Stdout:  strings.TrimSpace(res.Output),
			Command: command,
		}
	}

	failed := BashResult{ExitCode: -1, Command: command}

	var timeoutErr *executor.CommandTimeoutError
	var exitErr *executor.CommandFailedError
	switch {
	case errors.As(err, &timeoutErr):
		failed.Stderr = fmt.Sprintf("Command timed out after %d seconds", int(timeout/time.Second))
	case errors.As(err, &exitErr):
		failed.ExitCode = exitErr.ExitCode
		failed.Stderr = strings.TrimSpace(exitErr.Stderr)
		if failed.Stderr == "" {
			failed.Stderr = exitErr.Error()
		}
	default:
		failed.Stderr = err.Error()
	}
	return failed
}

// IsSafeCommand reports whether command matches none of the known
// destructive patterns.
func (*Bash) IsSafeCommand(command string) bool {
	return !containsAny(strings.ToLower(command), dangerousPatterns)
}

// RiskLevel grades command.
func (*Bash) RiskLevel(command string) Risk {
	lower := strings.ToLower(command)
	switch {
	case containsAny(lower, criticalPatterns):
		return RiskCritical
	case containsAny(lower, highRiskPatterns):
		return RiskHigh
	case containsAny(lower, mediumRiskPatterns):
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskDescription describes what command could do, for a confirmation
// prompt.
func (b *Bash) RiskDescription(command string) string {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "rm"):
		return "delete files or directories permanently"
	case strings.Contains(lower, "sudo"):
		return "make system-level changes with elevated privileges"
	case strings.Contains(lower, "kill"):
		return "terminate running processes"
	case strings.Contains(lower, "chmod"), strings.Contains(lower, "chown"):
		return "change file permissions or ownership"
	case containsAny(lower, []string{"apt", "yum", "brew", "pip"}):
		return "install or modify system packages"
	case strings.Contains(lower, "curl"), strings.Contains(lower, "wget"):
		return "download content from the internet"
	}

	switch b.RiskLevel(command) {
	case RiskCritical:
		return "cause severe system damage"
	case RiskHigh:
		return "cause significant system changes"
	case RiskMedium:
		return "modify your system"
	default:
		return "perform system operations"
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
