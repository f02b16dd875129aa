// Package platform resolves the running host to the canonical platform tag
// that toolkit documents use as their binary lookup key.
//
// Detection combines runtime.GOOS with gopsutil's kernel architecture and CPU
// brand string, so a translated (Rosetta) process on Apple Silicon still
// resolves to the ARM tag. Linux distribution details are collected on a
// best-effort basis and exposed to Lua toolkit documents.
package platform

import (
	"context"
	"strings"
)

// Tag is a canonical OS+architecture identifier.
type Tag string

// Supported platform tags.
const (
	TagLinuxX86_64  Tag = "linux-x86_64"
	TagLinuxAArch64 Tag = "linux-aarch64"
	TagMacOSX86_64  Tag = "macosx-x86_64"
	TagMacOSARM64   Tag = "macosx-arm64"
	TagWindowsAMD64 Tag = "win-amd64"
	TagUnknown      Tag = "unknown"
)

// AllTags lists every tag Resolve can return.
var AllTags = []Tag{
	TagLinuxX86_64,
	TagLinuxAArch64,
	TagMacOSX86_64,
	TagMacOSARM64,
	TagWindowsAMD64,
	TagUnknown,
}

// String returns the tag as used in toolkit documents.
func (t Tag) String() string {
	return string(t)
}

// IsWindows reports whether the tag names a Windows host.
func (t Tag) IsWindows() bool {
	return strings.HasPrefix(string(t), "win")
}

// IsMacOS reports whether the tag names a macOS host.
func (t Tag) IsMacOS() bool {
	return strings.HasPrefix(string(t), "macosx")
}

// IsLinux reports whether the tag names a Linux host.
func (t Tag) IsLinux() bool {
	return strings.HasPrefix(string(t), "linux")
}

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS        string // "linux", "darwin", "windows"
	Arch      string // "amd64", "arm64" or the raw value when unrecognized
	ArchRaw   string // GOARCH of the running binary
	Machine   string // kernel architecture (e.g. "x86_64", "aarch64")
	Processor string // CPU brand string, may be empty
	Tag       Tag    // resolved platform tag
	Platform  string // distro ID (Linux only, e.g. "ubuntu")
	Family    string // canonical family (Linux only, e.g. "debian")
	Version   string // distro version (Linux only, e.g. "22.04")
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != "linux" || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsARM64 returns true if the resolved tag is an ARM tag.
func (i *Info) IsARM64() bool {
	return i.Tag == TagLinuxAArch64 || i.Tag == TagMacOSARM64
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
