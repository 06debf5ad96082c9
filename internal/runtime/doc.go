// SPDX-License-Identifier: MPL-2.0

// Package runtime runs the external commands a dependency build needs.
//
// Two runtime implementations are available:
//   - native: executes commands directly or through the host shell (sh/bash, cmd or PowerShell),
//     optionally inside an activated virtualenv and through the host spawn prefix when depforge
//     itself runs in a Flatpak or Snap sandbox
//   - virtual: executes scripts with the embedded mvdan/sh interpreter; file opens and
//     redirections are confined to a set of allowed directories
//
// Both implement the Runtime interface. Environment overlays are merged into
// the child environment when each command starts; runtimes never modify the
// depforge process environment or working directory.
package runtime
