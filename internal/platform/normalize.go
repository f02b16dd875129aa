package platform

import (
	"strings"
)

// familyMap maps distribution names to their canonical family names.
// This is used to normalize variations of family strings from gopsutil.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian, // gopsutil might return ubuntu as family
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// Resolve maps an OS name, machine architecture and CPU brand string to
// exactly one Tag. It never fails; unknown Linux architectures fall back to
// linux-x86_64 and unknown operating systems to TagUnknown.
func Resolve(goos, machine, processor string) Tag {
	arch := normalizeArch(machine)

	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "linux":
		if arch == "arm64" {
			return TagLinuxAArch64
		}
		return TagLinuxX86_64
	case "darwin", "macos", "macosx":
		if arch == "arm64" || strings.Contains(strings.ToLower(processor), "apple") {
			return TagMacOSARM64
		}
		return TagMacOSX86_64
	case "windows":
		return TagWindowsAMD64
	default:
		return TagUnknown
	}
}

// normalizeArch folds the aliases of the two supported architectures.
// Anything else is returned lower-cased and unchanged.
func normalizeArch(arch string) string {
	a := strings.ToLower(strings.TrimSpace(arch))
	switch a {
	case "amd64", "x86_64", "x64":
		return "amd64"
	case "arm64", "aarch64", "arm64e":
		return "arm64"
	default:
		return a
	}
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	normalized := strings.ToLower(strings.TrimSpace(family))
	if canonical, ok := familyMap[normalized]; ok {
		return canonical
	}
	return FamilyUnknown
}
