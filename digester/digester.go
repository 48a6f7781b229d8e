package digester

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Calculate computes the SHA256 hex digest of the file at path.
func Calculate(path string) (result string, retErr error) {
	const errCtx = "calculating digest"

	fi, err := os.Open(path) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if closeErr := fi.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("%s: %w", errCtx, closeErr)
		}
	}()

	ha := sha256.New()

	if _, err := io.Copy(ha, fi); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return hex.EncodeToString(ha.Sum(nil)), nil
}

// Recorded reads the recorded checksum from path. Returns empty
// string with no error when no checksum has been recorded yet.
func Recorded(path string) (string, error) {
	const errCtx = "reading recorded checksum"

	raw, err := os.ReadFile(path) //nolint:gosec // path is caller-provided by design
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(string(raw)), nil
}

// Record persists digest as the recorded checksum at path,
// overwriting any previous value.
func Record(path string, digest string) error {
	const errCtx = "recording checksum"

	if err := os.WriteFile(
		path, []byte(digest), 0o600,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
