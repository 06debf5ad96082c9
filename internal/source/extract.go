// SPDX-License-Identifier: MPL-2.0

package source

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Archive formats.
const (
	FormatZip    ArchiveFormat = "zip"
	FormatTar    ArchiveFormat = "tar"
	FormatTarGz  ArchiveFormat = "tar.gz"
	FormatTarBz2 ArchiveFormat = "tar.bz2"
	FormatTarXz  ArchiveFormat = "tar.xz"
	// FormatGit marks a repository URL rather than an archive.
	FormatGit ArchiveFormat = "git"
)

// ErrUnknownFormat is returned for a filename whose extension names no known format.
var ErrUnknownFormat = errors.New("unknown archive format")

// ArchiveFormat identifies how a source file is unpacked.
type ArchiveFormat string

// DetectFormat picks the archive format from filename's extension.
func DetectFormat(filename string) (ArchiveFormat, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return FormatTarBz2, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".git"):
		return FormatGit, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(filename))
	}
}

// Extract unpacks the archive at path into destDir according to its extension.
// Entries that would land outside destDir are rejected.
func Extract(path, destDir string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return &ExtractionError{Archive: path, Err: err}
	}
	return ExtractFormat(path, destDir, format)
}

// ExtractFormat unpacks the archive at path into destDir as format.
func ExtractFormat(path, destDir string, format ArchiveFormat) error {
	var err error
	switch format {
	case FormatGit:
		return &ExtractionError{Archive: path, Err: errors.New("repositories are cloned, not extracted")}
	case FormatZip, FormatTar, FormatTarGz, FormatTarBz2, FormatTarXz:
	default:
		return &ExtractionError{Archive: path, Err: fmt.Errorf("%w: %s", ErrUnknownFormat, format)}
	}
	if err = os.MkdirAll(destDir, 0o755); err != nil {
		return &ExtractionError{Archive: path, Err: err}
	}

	if format == FormatZip {
		err = extractZip(path, destDir)
	} else {
		err = extractTarFile(path, destDir, format)
	}
	if err != nil {
		return &ExtractionError{Archive: path, Err: err}
	}
	return nil
}

func extractTarFile(path, destDir string, format ArchiveFormat) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }() // read-only

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatTarBz2:
		r = bzip2.NewReader(f)
	case FormatTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = xzr
	}

	return extractTar(tar.NewReader(r), destDir)
}

func extractTar(tr *tar.Reader, destDir string) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr.FileInfo().Mode())); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
			// Keep archive mtimes so make does not rerun autotools steps.
			_ = os.Chtimes(target, hdr.ModTime, hdr.ModTime)
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", hdr.Name, err)
			}
		case tar.TypeLink:
			linked, err := entryPath(destDir, hdr.Linkname)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(linked, target); err != nil {
				return fmt.Errorf("creating hard link %s: %w", hdr.Name, err)
			}
		default:
			// pax/global headers, devices and fifos are not needed for source trees
		}
	}
}

func extractZip(path, destDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		target, err := entryPath(destDir, f.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirMode(f.Mode())); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, f.Mode())
		_ = rc.Close()
		if err != nil {
			return err
		}
		if !f.Modified.IsZero() {
			_ = os.Chtimes(target, f.Modified, f.Modified)
		}
	}
	return nil
}

// entryPath maps an archive entry name to a path under destDir. It returns ""
// for entries that name destDir itself.
func entryPath(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination directory", name)
	}
	return filepath.Join(destDir, clean), nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}

func dirMode(mode os.FileMode) os.FileMode {
	if perm := mode.Perm(); perm != 0 {
		return perm | 0o700
	}
	return 0o755
}
