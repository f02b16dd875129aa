// Package progress turns live download state into throttled, human readable
// log lines.
package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/download"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
)

// Reporter defaults.
const (
	DefaultStep     = 5
	DefaultInterval = 2 * time.Second
	DefaultPoll     = 100 * time.Millisecond
)

// ErrDownloadFailed is returned by Track when the tracked transfer fails.
var ErrDownloadFailed = errors.New("download failed")

// Source is a live transfer. *download.Handle implements it.
type Source interface {
	State() download.State
	Changed() <-chan struct{}
	Done() <-chan struct{}
}

var _ Source = (*download.Handle)(nil)

// Throttle decides which progress samples become lines.
type Throttle struct {
	Step     int
	Interval time.Duration

	started     bool
	lastPercent int
	lastAt      time.Time
}

// ShouldEmit reports whether a sample at percent, taken at now, should be
// printed, and records it if so. The first sample is always printed, and
// 100% is printed once.
func (t *Throttle) ShouldEmit(percent int, now time.Time) bool {
	step := t.Step
	if step <= 0 {
		step = DefaultStep
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	emit := !t.started ||
		percent >= t.lastPercent+step ||
		now.Sub(t.lastAt) >= interval ||
		(percent == 100 && t.lastPercent != 100)
	if !emit {
		return false
	}

	t.started = true
	t.lastPercent = percent
	t.lastAt = now
	return true
}

// Options configures a Reporter.
type Options struct {
	Logger logging.Logger
	// Emit receives each line. Defaults to Logger.Info.
	Emit     func(line string)
	Step     int
	Interval time.Duration
	Poll     time.Duration
	Now      func() time.Time
}

// Reporter prints download progress.
type Reporter struct {
	emit     func(string)
	step     int
	interval time.Duration
	poll     time.Duration
	now      func() time.Time
}

// NewReporter creates a Reporter.
func NewReporter(opts Options) *Reporter {
	r := &Reporter{
		emit:     opts.Emit,
		step:     opts.Step,
		interval: opts.Interval,
		poll:     opts.Poll,
		now:      opts.Now,
	}
	if r.emit == nil {
		logger := logging.OrNoop(opts.Logger)
		r.emit = func(line string) { logger.Info(line) }
	}
	if r.poll <= 0 {
		r.poll = DefaultPoll
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Track follows src until it ends, printing a line per throttled sample and a
// final completion line. It returns an error wrapping ErrDownloadFailed when
// the transfer fails.
func (r *Reporter) Track(src Source, fileName string) error {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	throttle := Throttle{Step: r.step, Interval: r.interval}

	for {
		s := src.State()
		if s.Failed {
			return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, fileName, s.Err)
		}

		if throttle.ShouldEmit(int(s.Percent), r.now()) {
			r.emit(FormatLine(fileName, s))
		}

		if s.Finished {
			r.emit("Download completed: " + fileName)
			return nil
		}

		select {
		case <-src.Changed():
		case <-src.Done():
		case <-ticker.C:
		}
	}
}

// FormatLine renders one progress line for fileName.
func FormatLine(fileName string, s download.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Downloading %s: %d%%", fileName, int(s.Percent))

	if s.Speed > 0 {
		b.WriteString(" at ")
		b.WriteString(FormatSpeed(s.Speed))
		if s.ETA > 0 {
			fmt.Fprintf(&b, " (ETA: %s)", FormatETA(s.ETA))
		}
	}
	if s.Total > 0 {
		fmt.Fprintf(&b, " [%s/%s]", FormatBytes(s.Done), FormatBytes(s.Total))
	}

	return b.String()
}
