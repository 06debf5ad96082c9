// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
)

var (
	// ErrDownload is the sentinel error wrapped by DownloadError.
	ErrDownload = errors.New("download failed")

	// ErrExtraction is the sentinel error wrapped by ExtractionError.
	ErrExtraction = errors.New("extraction failed")

	// ErrSourceNotFound is the sentinel error wrapped by SourceNotFoundError.
	ErrSourceNotFound = errors.New("source not found")

	// ErrChecksumMismatch is returned when a downloaded file's digest differs from the expected one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

type (
	// DownloadError is returned when a resource cannot be fetched.
	DownloadError struct {
		URL        string
		StatusCode int
		Err        error
	}

	// ExtractionError is returned when an archive cannot be unpacked.
	ExtractionError struct {
		Archive string
		Err     error
	}

	// SourceNotFoundError is returned when a dependency's source directory is
	// still missing after acquisition was attempted.
	SourceNotFoundError struct {
		Name string
		Dir  string
	}

	// ChecksumError is returned when a downloaded file does not match its
	// expected SHA256 digest.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error implements the error interface.
func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("downloading %s: unexpected status %d", redactURL(e.URL), e.StatusCode)
	}
	return fmt.Sprintf("downloading %s: %v", redactURL(e.URL), e.Err)
}

// Unwrap returns ErrDownload.
func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDownload}
	}
	return []error{ErrDownload, e.Err}
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

// Unwrap returns ErrExtraction and the underlying cause.
func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// Error implements the error interface.
func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("could not find or retrieve %s: directory %s does not exist", e.Name, e.Dir)
}

// Unwrap returns ErrSourceNotFound.
func (e *SourceNotFoundError) Unwrap() error { return ErrSourceNotFound }

// Error implements the error interface.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }
