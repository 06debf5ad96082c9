// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const defaultUserAgent = "depforge"

type (
	// Downloader fetches source archives and binary installers over HTTP.
	Downloader struct {
		httpClient *http.Client
		userAgent  string
		logger     *log.Logger
	}

	// DownloaderOption configures a Downloader.
	DownloaderOption func(*Downloader)
)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.httpClient = c }
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) { d.userAgent = ua }
}

// WithDownloadLogger sets the logger for download progress messages.
func WithDownloadLogger(l *log.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader creates a Downloader. Defaults: http.DefaultClient and a
// logger that discards output.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: http.DefaultClient,
		userAgent:  defaultUserAgent,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches rawURL into destDir under FilenameFromURL(rawURL), creating
// destDir if needed, and returns the path of the stored file. The file only
// appears once the transfer completed; failures leave nothing behind.
func (d *Downloader) Download(ctx context.Context, rawURL, destDir string) (_ string, err error) {
	filename := FilenameFromURL(rawURL)
	if filename == "" || filename == "." || filename == ".." {
		return "", &DownloadError{URL: rawURL, Err: errors.New("cannot derive a filename")}
	}
	dest := filepath.Join(destDir, filename)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("creating %s: %w", destDir, err)}
	}

	d.logger.Info("downloading, this may take time", "url", redactURL(rawURL), "file", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(destDir, ".depforge-download-*")
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("creating temp file: %w", err)}
	}
	defer func() {
		if err != nil {
			// Best-effort removal of a partial download.
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("writing %s: %w", dest, err)}
	}

	if err = os.Rename(tmp.Name(), dest); err != nil {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("moving download into place: %w", err)}
	}

	d.logger.Debug("download complete", "file", dest, "bytes", n)
	return dest, nil
}

// VerifyFile computes the SHA256 hash of the file at path and compares it with
// expectedHash. Returns nil if the hashes match (case-insensitive comparison),
// or a *ChecksumError if they differ.
func VerifyFile(path, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, strings.TrimSpace(expectedHash)) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(strings.TrimSpace(expectedHash)),
			Got:      got,
		}
	}
	return nil
}

// ComputeFileHash returns the lowercase hex-encoded SHA256 digest of the file at path.
func ComputeFileHash(path string) (_ string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
