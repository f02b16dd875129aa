// Package download transfers a single URL to a file, exposing live progress
// through a Handle. Transfers write to <dest>.tmp and rename into place, so a
// destination path only ever holds a complete file. A partial .tmp left by a
// failed attempt is resumed with a Range request when the server allows it.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
)

const (
	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 30 * time.Minute
	// DefaultRetries is the default number of download retries.
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "toolrun/1.0"

	maxRedirects = 10
)

// ErrEmptyFile reports a transfer that left no data at the destination.
var ErrEmptyFile = errors.New("downloaded file is empty or was not created properly")

// Options configures a Downloader.
type Options struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
	Logger logging.Logger
}

// Downloader handles HTTP downloads with retry logic.
type Downloader struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   func(attempt int) time.Duration
	now       func() time.Time
	logger    logging.Logger
}

// NewDownloader creates a new downloader.
func NewDownloader(opts Options) *Downloader {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}

	retries := opts.Retries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = DefaultRetries
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Downloader{
		client:    client,
		userAgent: userAgent,
		retries:   retries,
		backoff:   exponentialBackoff,
		now:       time.Now,
		logger:    logging.OrNoop(opts.Logger),
	}
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// Transfer downloads url to destPath and returns once the transfer has
// finished or failed.
func (d *Downloader) Transfer(ctx context.Context, url, destPath string) (State, error) {
	h := newHandle(d.now)
	h.finish(d.run(ctx, url, destPath, h))
	return h.Wait()
}

// Start begins downloading url to destPath in the background and returns
// immediately with a live Handle.
func (d *Downloader) Start(ctx context.Context, url, destPath string) *Handle {
	h := newHandle(d.now)
	go func() {
		h.finish(d.run(ctx, url, destPath, h))
	}()
	return h
}

func (d *Downloader) run(ctx context.Context, url, destPath string, h *Handle) error {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			select {
			case <-time.After(d.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
			d.logger.Debug("retrying download", "url", url, "attempt", attempt, "error", lastErr)
		}

		err := d.downloadOnce(ctx, url, destPath, h)
		if err == nil {
			if !NonEmptyFile(destPath) {
				return ErrEmptyFile
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("download failed after %d retries: %w", d.retries, lastErr)
}

// downloadOnce performs a single download attempt.
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string, h *Handle) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	var offset int64
	if info, err := os.Stat(tmpPath); err == nil && info.Mode().IsRegular() {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		offset = 0
		flags |= os.O_TRUNC
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file does not match the remote one; start over.
		os.Remove(tmpPath)
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}
	h.begin(offset, total)

	tmpFile, err := os.OpenFile(tmpPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	if _, err := io.Copy(io.MultiWriter(tmpFile, progressWriter{h}), resp.Body); err != nil {
		return fmt.Errorf("copy response body: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// NonEmptyFile reports whether path is a regular file with data in it.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
