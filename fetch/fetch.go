package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultTimeout bounds a whole download attempt.
	DefaultTimeout = 5 * time.Minute

	// archiveURLTemplate is the fixed layout of published
	// archives: each upload is keyed by its content checksum.
	archiveURLTemplate = "{base}/{checksum}/{filename}"
)

// ArchiveURL expands the archive URL template for the given base
// endpoint, content checksum, and file name.
func ArchiveURL(
	base string,
	checksum string,
	filename string,
) string {
	return fasttemplate.ExecuteStringStd(
		archiveURLTemplate, "{", "}",
		map[string]any{
			"base":     base,
			"checksum": checksum,
			"filename": filename,
		},
	)
}

// Client downloads files over HTTP.
type Client struct {
	hc *http.Client
}

// NewClient returns a Client with the given per-request timeout.
// Zero means DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		hc: &http.Client{Timeout: timeout},
	}
}

// ToFile downloads url into destPath. The payload is written to a
// sibling temporary file first and renamed into place on success.
// There is no retry: a network failure surfaces directly (the
// provisioning flow is a single-shot developer command).
func (c *Client) ToFile(
	ctx context.Context,
	url string,
	destPath string,
) error {
	const errCtx = "downloading file"

	slog.Info(
		"downloading",
		"url", url,
		"dest", destPath,
	)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, url, nil,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create request: %w", errCtx, err,
		)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"%s: unexpected status %d for %s",
			errCtx, resp.StatusCode, url,
		)
	}

	if err := os.MkdirAll(
		filepath.Dir(destPath), 0o755,
	); err != nil {
		return fmt.Errorf(
			"%s: create dest dir: %w", errCtx, err,
		)
	}

	tmpPath := destPath + ".tmp"

	tmp, err := os.Create(tmpPath) //nolint:gosec // path derived from destPath
	if err != nil {
		return fmt.Errorf(
			"%s: create temp file: %w", errCtx, err,
		)
	}

	cleanup := true

	defer func() {
		tmp.Close() //nolint:errcheck,gosec // best-effort on error path

		if cleanup {
			os.Remove(tmpPath) //nolint:errcheck,gosec // best-effort cleanup
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf(
			"%s: write payload: %w", errCtx, err,
		)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf(
			"%s: close temp file: %w", errCtx, err,
		)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf(
			"%s: rename into place: %w", errCtx, err,
		)
	}

	cleanup = false

	return nil
}
