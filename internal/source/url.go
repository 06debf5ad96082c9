// SPDX-License-Identifier: MPL-2.0

package source

import (
	"net/url"
	"strings"
)

// FilenameFromURL returns the local filename a download of rawURL is stored under.
//
// Normally this is the last path segment. Mirror links ending in "download"
// use the segment before it, and archive links of the form
// ".../<owner>/<repo>/archive/.../<ref>" become "<repo>-<ref>". Anything after
// a '#' is dropped.
func FilenameFromURL(rawURL string) string {
	rawURL, _, _ = strings.Cut(rawURL, "#")
	parts := strings.Split(strings.TrimRight(rawURL, "/"), "/")
	filename := parts[len(parts)-1]

	switch {
	case filename == "download" && len(parts) >= 2:
		filename = parts[len(parts)-2]
	case isArchiveLink(rawURL):
		for i := len(parts) - 2; i >= 1; i-- {
			if parts[i] == "archive" {
				filename = parts[i-1] + "-" + filename
				break
			}
		}
	}
	return filename
}

func isArchiveLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, "/archive/")
	}
	return strings.Contains(u.Path, "/archive/")
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages and logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
