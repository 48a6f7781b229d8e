package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ExtractTarGz extracts a .tar.gz archive into destDir.
func ExtractTarGz(archivePath, destDir string) error {
	const errCtx = "extracting tar.gz archive"

	fi, err := os.Open(archivePath) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return fmt.Errorf(
			"%s: open archive: %w", errCtx, err,
		)
	}

	defer fi.Close() //nolint:errcheck

	gz, err := gzip.NewReader(fi)
	if err != nil {
		return fmt.Errorf(
			"%s: gzip reader: %w", errCtx, err,
		)
	}

	defer gz.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf(
			"%s: create dest dir: %w", errCtx, err,
		)
	}

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf(
				"%s: read header: %w", errCtx, err,
			)
		}

		target, err := safeTarget(destDir, hdr.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(
				target, 0o755,
			); err != nil {
				return fmt.Errorf(
					"%s: mkdir %s: %w",
					errCtx, hdr.Name, err,
				)
			}

		case tar.TypeReg:
			if err := writeEntry(
				target,
				tr,
				os.FileMode(hdr.Mode), //nolint:gosec // mode from archive header
			); err != nil {
				return fmt.Errorf(
					"%s: write %s: %w",
					errCtx, hdr.Name, err,
				)
			}

		case tar.TypeSymlink:
			if err := os.Symlink(
				hdr.Linkname, target,
			); err != nil {
				return fmt.Errorf(
					"%s: symlink %s: %w",
					errCtx, hdr.Name, err,
				)
			}

		default:
			// Skip devices and other special
			// entries.
			continue
		}
	}

	return nil
}

// ExtractZip extracts a .zip archive into destDir.
func ExtractZip(archivePath, destDir string) error {
	const errCtx = "extracting zip archive"

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf(
			"%s: open archive: %w", errCtx, err,
		)
	}

	defer zr.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf(
			"%s: create dest dir: %w", errCtx, err,
		)
	}

	for _, f := range zr.File {
		target, err := safeTarget(destDir, f.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(
				target, 0o755,
			); err != nil {
				return fmt.Errorf(
					"%s: mkdir %s: %w",
					errCtx, f.Name, err,
				)
			}

			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf(
				"%s: open entry %s: %w",
				errCtx, f.Name, err,
			)
		}

		err = writeEntry(target, rc, f.Mode())

		rc.Close() //nolint:errcheck,gosec // read side already drained

		if err != nil {
			return fmt.Errorf(
				"%s: write %s: %w",
				errCtx, f.Name, err,
			)
		}
	}

	return nil
}

// writeEntry copies entry content to target, creating parent
// directories as needed.
func writeEntry(
	target string,
	src io.Reader,
	mode os.FileMode,
) error {
	if err := os.MkdirAll(
		filepath.Dir(target), 0o755,
	); err != nil {
		return err
	}

	out, err := os.OpenFile( //nolint:gosec // target validated by safeTarget
		target,
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
		mode,
	)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close() //nolint:errcheck,gosec // error path

		return err
	}

	return out.Close()
}

// safeTarget joins name under destDir and rejects entries that
// would escape it.
func safeTarget(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)

	// A "./" directory header joins to destDir itself, which
	// is a legal target.
	if target == filepath.Clean(destDir) {
		return target, nil
	}

	prefix := filepath.Clean(destDir) +
		string(os.PathSeparator)

	if !strings.HasPrefix(target, prefix) {
		return "", fmt.Errorf(
			"illegal entry path: %s", name,
		)
	}

	return target, nil
}
