// SPDX-License-Identifier: MPL-2.0

// Package platform identifies the running platform and how recipe documents name it.
//
// Older recipe files key platform overrides by Python platform names
// ("win32", "linux2"); Keys maps the Go GOOS value onto every name that should match.
// The package also detects application sandboxes (Flatpak, Snap) so that build commands
// can be spawned on the host rather than inside the sandbox.
package platform
