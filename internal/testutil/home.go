// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"

	"github.com/mitchellh/go-homedir"
)

// SetHomeDir points the platform's home variable (USERPROFILE on Windows,
// HOME elsewhere) at dir and disables go-homedir's cache so lookups see the
// change. The returned function restores both.
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}
	restoreEnv := MustSetenv(t, key, dir)
	prevCache := homedir.DisableCache
	homedir.DisableCache = true
	homedir.Reset()
	return func() {
		restoreEnv()
		homedir.DisableCache = prevCache
		homedir.Reset()
	}
}
