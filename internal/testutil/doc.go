// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers that fail the test instead of returning errors.
//
// Environment and working-directory helpers (MustSetenv, MustChdir, SetHomeDir)
// return restore functions meant for t.Cleanup. Source fixtures build archives
// in memory (TarGz, Zip) and serve them from an httptest server (ServeFiles)
// standing in for upstream download sites.
package testutil
