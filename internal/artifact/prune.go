package artifact

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
)

// versionedName matches <base>_<x.y.z>-<platform>[.exe].
var versionedName = regexp.MustCompile(`^(.+?)_(\d+\.\d+\.\d+)-(.*?)(?:\.exe)?$`)

// VersionKey is the identity parsed from a versioned binary file name.
type VersionKey struct {
	Base     string
	Version  string
	Platform string
}

// ParseVersionKey parses name. It returns false when name does not follow
// the versioned naming scheme.
func ParseVersionKey(name string) (VersionKey, bool) {
	m := versionedName.FindStringSubmatch(name)
	if m == nil {
		return VersionKey{}, false
	}
	return VersionKey{Base: m[1], Version: m[2], Platform: m[3]}, true
}

// PruneOldVersions deletes every file in binsDir that is another version of
// newFile for the same platform, and returns the deleted names. Names outside
// the versioned scheme are left alone. Failures are reported as cleanup
// warnings and never returned.
func PruneOldVersions(scope *events.Scope, binsDir, newFile string) []string {
	if scope == nil {
		scope = events.NewScope(nil, "", "")
	}

	current, ok := ParseVersionKey(newFile)
	if !ok {
		return nil
	}

	entries, err := os.ReadDir(binsDir)
	if err != nil {
		scope.Report(events.CleanupWarning, map[string]string{"error": err.Error()})
		return nil
	}

	var deleted []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == newFile {
			continue
		}

		key, ok := ParseVersionKey(name)
		if !ok || key.Base != current.Base || key.Platform != current.Platform || key.Version == current.Version {
			continue
		}

		scope.Report(events.DeletingOldVersion, map[string]string{"file": name})
		if err := os.Remove(filepath.Join(binsDir, name)); err != nil {
			scope.Report(events.CleanupWarning, map[string]string{
				"file":  name,
				"error": err.Error(),
			})
			continue
		}
		scope.Report(events.OldVersionDeleted, map[string]string{"file": name})
		deleted = append(deleted, name)
	}

	return deleted
}
