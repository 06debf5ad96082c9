// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// legacyNames lists the additional platform keys recipe documents use for a GOOS value.
var legacyNames = map[string][]string{
	Windows: {"win32", "win", "cygwin"},
	Linux:   {"linux2", "linux3"},
}

// Current returns the GOOS value of the running process.
func Current() string {
	return runtime.GOOS
}

// IsWindows reports whether the running process is on Windows.
func IsWindows() bool {
	return runtime.GOOS == Windows
}

// Keys returns the recipe platform keys that match goos, in fold order.
// Legacy names come first so that an override keyed by the Go name wins
// when a document carries both.
func Keys(goos string) []string {
	keys := make([]string, 0, len(legacyNames[goos])+1)
	keys = append(keys, legacyNames[goos]...)
	return append(keys, goos)
}

// IsPlatformKey reports whether key names any known platform.
// Property maps use this to drop override sub-objects for other platforms.
func IsPlatformKey(key string) bool {
	switch key {
	case Windows, Darwin, Linux, "freebsd", "openbsd", "netbsd":
		return true
	}
	for _, names := range legacyNames {
		for _, n := range names {
			if n == key {
				return true
			}
		}
	}
	return false
}
