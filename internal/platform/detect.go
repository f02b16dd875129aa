package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect performs platform detection and returns platform information.
//
// The kernel architecture reported by gopsutil takes precedence over GOARCH,
// so an amd64 build running under translation on an ARM Mac still resolves
// to the ARM tag. Detection failures fall back to runtime values; only a
// cancelled context is reported as an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
		Machine: runtime.GOARCH,
	}

	hostInfo, err := host.InfoWithContext(ctx)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
	}
	if hostInfo != nil {
		if hostInfo.KernelArch != "" {
			info.Machine = hostInfo.KernelArch
		}

		// Distro fields are only meaningful on Linux and only when the
		// lookup itself succeeded.
		if err == nil && runtime.GOOS == "linux" {
			if platform := normalizePlatform(hostInfo.Platform); platform != "" {
				info.Platform = platform
				info.Family = mapFamily(hostInfo.PlatformFamily)
				info.Version = normalizePlatform(hostInfo.PlatformVersion)
			}
		}
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.Processor = cpus[0].ModelName
	}

	info.Arch = normalizeArch(info.Machine)
	info.Tag = Resolve(info.OS, info.Machine, info.Processor)

	return info, nil
}

var (
	currentOnce sync.Once
	currentTag  Tag
)

// Current returns the platform tag of the running process. The tag is
// detected once and reused for the life of the process.
func Current(ctx context.Context) Tag {
	currentOnce.Do(func() {
		info, err := NewDetector().Detect(ctx)
		if err != nil {
			currentTag = Resolve(runtime.GOOS, runtime.GOARCH, "")
			return
		}
		currentTag = info.Tag
	})
	return currentTag
}
