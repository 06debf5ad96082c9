// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
)

type (
	// Request describes the source of one dependency.
	Request struct {
		// Name is the dependency name, used in messages.
		Name string
		// URL is the archive or repository location; empty for local-only sources.
		URL string
		// SourceDir is the directory that must exist once acquisition is done.
		SourceDir string
		// Root is where archives are stored and unpacked.
		Root string
		// Kind forces the source kind; FormatGit clones URL even without a ".git" suffix.
		Kind ArchiveFormat
		// Ref is the tag or branch checked out after a clone.
		Ref string
		// SHA256, when set, must match the downloaded archive.
		SHA256 string
	}

	// Acquirer makes dependency sources available on disk.
	Acquirer struct {
		downloader *Downloader
		git        *GitFetcher
		logger     *log.Logger
	}
)

// NewAcquirer creates an Acquirer. A nil logger discards output.
func NewAcquirer(d *Downloader, g *GitFetcher, logger *log.Logger) *Acquirer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Acquirer{downloader: d, git: g, logger: logger}
}

// Exists reports whether the source directory for req is already present.
func (a *Acquirer) Exists(req Request) bool {
	return isDir(req.SourceDir)
}

// Ensure makes req.SourceDir exist, downloading and unpacking or cloning the
// source when it does not. An archive already present in the root is reused.
// A source directory still missing afterwards yields a SourceNotFoundError.
func (a *Acquirer) Ensure(ctx context.Context, req Request) error {
	if a.Exists(req) {
		return nil
	}

	if req.URL != "" {
		if err := a.fetch(ctx, req); err != nil {
			return err
		}
	}

	if !a.Exists(req) {
		return &SourceNotFoundError{Name: req.Name, Dir: req.SourceDir}
	}
	return nil
}

// Fetch returns the local path of the file at rawURL inside destDir,
// downloading it only when it is not there yet.
func (a *Acquirer) Fetch(ctx context.Context, rawURL, destDir, sha256 string) (string, error) {
	path := filepath.Join(destDir, FilenameFromURL(rawURL))
	if !exists(path) {
		a.logger.Info("file not found locally", "file", path)
		downloaded, err := a.downloader.Download(ctx, rawURL, destDir)
		if err != nil {
			return "", err
		}
		path = downloaded
	}
	if sha256 != "" {
		if err := VerifyFile(path, sha256); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (a *Acquirer) fetch(ctx context.Context, req Request) error {
	kind := req.Kind
	if kind == "" {
		detected, err := DetectFormat(FilenameFromURL(req.URL))
		if err != nil {
			return &ExtractionError{Archive: req.URL, Err: err}
		}
		kind = detected
	}

	if kind == FormatGit {
		if err := a.git.Clone(ctx, req.URL, req.SourceDir, req.Ref); err != nil {
			return &DownloadError{URL: req.URL, Err: err}
		}
		return nil
	}

	archive, err := a.Fetch(ctx, req.URL, req.Root, req.SHA256)
	if err != nil {
		return err
	}
	a.logger.Info("extracting", "archive", archive, "dest", req.Root)
	if err := ExtractFormat(archive, req.Root, kind); err != nil {
		return fmt.Errorf("%s: %w", req.Name, err)
	}
	return nil
}
