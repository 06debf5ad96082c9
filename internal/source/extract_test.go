// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/depforge/depforge/internal/testutil"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want ArchiveFormat
	}{
		{"zlib-1.2.11.tar.gz", FormatTarGz},
		{"x.tgz", FormatTarGz},
		{"boost.tar.bz2", FormatTarBz2},
		{"pkg.TAR.XZ", FormatTarXz},
		{"plain.tar", FormatTar},
		{"REPO-master.zip", FormatZip},
		{"repo.git", FormatGit},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}

	if _, err := DetectFormat("setup.exe"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("DetectFormat(setup.exe) error = %v, want ErrUnknownFormat", err)
	}
}

func TestExtract_TarGz(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg-1.0.tar.gz")
	data := testutil.TarGz(t, []testutil.File{
		{Name: "pkg-1.0/configure", Body: "#!/bin/sh\n", Mode: 0o755},
		{Name: "pkg-1.0/src/lib.c", Body: "int x;"},
	})
	testutil.MustWriteFile(t, archive, data, 0o644)

	dest := filepath.Join(dir, "out")
	if err := Extract(archive, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dest, "pkg-1.0", "src", "lib.c"))
	if err != nil || string(body) != "int x;" {
		t.Errorf("lib.c = %q, %v", body, err)
	}
	if runtime.GOOS != "windows" {
		fi, err := os.Stat(filepath.Join(dest, "pkg-1.0", "configure"))
		if err != nil {
			t.Fatalf("stat configure: %v", err)
		}
		if fi.Mode().Perm()&0o100 == 0 {
			t.Errorf("configure mode = %v, want executable", fi.Mode())
		}
	}
}

func TestExtract_Zip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "REPO-master.zip")
	testutil.MustWriteFile(t, archive, testutil.Zip(t, []testutil.File{
		{Name: "REPO-master/README", Body: "hi"},
	}), 0o644)

	if err := Extract(archive, dir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "REPO-master", "README"))
	if err != nil || string(body) != "hi" {
		t.Errorf("README = %q, %v", body, err)
	}
}

func TestExtract_RejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	testutil.MustWriteFile(t, archive, testutil.Zip(t, []testutil.File{
		{Name: "../escaped.txt", Body: "x"},
	}), 0o644)

	dest := filepath.Join(dir, "out")
	err := Extract(archive, dest)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("Extract() error = %v, want ErrExtraction", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "escaped.txt")); statErr == nil {
		t.Error("entry was written outside the destination")
	}
}

func TestExtractFormat_Git(t *testing.T) {
	t.Parallel()

	err := ExtractFormat("repo.git", t.TempDir(), FormatGit)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("ExtractFormat(git) error = %v, want *ExtractionError", err)
	}
}
