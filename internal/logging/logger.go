// Package logging builds the process log for toolrun.
//
// Every line of the process log carries LinePrefix so a consumer reading the
// same stream as the JSON event sideband can tell the two apart.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LinePrefix marks every process log line.
const LinePrefix = "[TOOLRUN_LOG] "

// Environment variables that configure the process log. They are read by
// the config package.
const (
	EnvLogLevel = "TOOLRUN_LOG_LEVEL"
	EnvJSONLog  = "TOOLRUN_JSON_LOG"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "info"

// Logger provides structured logging for engine components.
// hclog.Logger satisfies it, as does the no-op logger returned by Noop.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Noop returns a Logger that discards everything.
func Noop() Logger {
	return noopLogger{}
}

// OrNoop returns l, or a no-op logger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return Noop()
	}
	return l
}

// Options configures NewLogger.
type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// NewLogger creates an hclog logger. Output is wrapped in a PrefixWriter so
// each line starts with LinePrefix, JSON lines included.
func NewLogger(opts Options) hclog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	output = NewPrefixWriter(LinePrefix, output)

	level := opts.Level
	if level == "" {
		level = DefaultLevel
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: opts.JSON,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}
