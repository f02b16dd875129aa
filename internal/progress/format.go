package progress

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n in base-1024 units with at most two decimals,
// e.g. "1.5 MB". Zero and negative sizes render as "0 B".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}

	v := float64(n)
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100

	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

// FormatSpeed renders a transfer rate in bytes per second.
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}

// FormatETA renders d as "1h 2m 3s", dropping leading zero units.
// Negative durations mean unknown and render as "∞".
func FormatETA(d time.Duration) string {
	if d < 0 {
		return "∞"
	}

	secs := int64(d.Round(time.Second) / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
