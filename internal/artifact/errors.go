package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBinaryURL is returned when a tool declares no binary for the
	// current platform.
	ErrNoBinaryURL = errors.New("no binary URL for platform")

	// ErrNoResourceURLs is returned when a resource is missing or empty.
	ErrNoResourceURLs = errors.New("no resource URLs")

	// ErrDownloadFailed is returned when a binary could not be fetched or
	// did not pass verification.
	ErrDownloadFailed = errors.New("binary download failed")

	// ErrResourceFileDownloadFailed matches every ResourceFileError.
	ErrResourceFileDownloadFailed = errors.New("resource file download failed")

	// ErrPermissionAdjustment marks a failed chmod. It is logged, never
	// returned to callers.
	ErrPermissionAdjustment = errors.New("permission adjustment failed")

	// ErrIntegrity is returned when a checksum or signature does not match.
	ErrIntegrity = errors.New("integrity check failed")
)

// ResourceFileError names the file of a bundle that could not be fetched.
type ResourceFileError struct {
	Resource string
	File     string
	Err      error
}

func (e *ResourceFileError) Error() string {
	return fmt.Sprintf("failed to download resource file '%s' of '%s': %v", e.File, e.Resource, e.Err)
}

func (e *ResourceFileError) Is(target error) bool {
	return target == ErrResourceFileDownloadFailed
}

func (e *ResourceFileError) Unwrap() error {
	return e.Err
}
