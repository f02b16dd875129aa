// Package artifact makes tool binaries and resource bundles present on disk.
//
// Each toolkit keeps its artifacts under <toolkits_root>/<toolkit_id>/bins:
// binaries as single files named after their download URL, resource bundles
// as one directory per resource. Artifacts are fetched on first use only;
// later calls find them in place and return immediately.
//
// Binaries follow the release naming scheme <name>_<x.y.z>-<platform>, and
// installing a new version deletes the older ones for the same platform.
// Optional SHA256 checksums and detached OpenPGP signatures declared in the
// toolkit document are checked before a binary is used.
package artifact
