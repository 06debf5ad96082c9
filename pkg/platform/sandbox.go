// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"sync"
)

const (
	SandboxNone    SandboxType = ""
	SandboxFlatpak SandboxType = "flatpak"
	SandboxSnap    SandboxType = "snap"
)

// SandboxType names the application sandbox depforge runs in, if any.
// Compilers and installers live on the host, so build commands issued from
// inside a sandbox are spawned through the sandbox's host escape.
type SandboxType string

var (
	hostSpawn = map[SandboxType][]string{
		SandboxFlatpak: {"flatpak-spawn", "--host"},
		SandboxSnap:    {"snap", "run", "--shell"},
	}

	detected = sync.OnceValue(func() SandboxType {
		return detectSandboxFrom(os.Getenv, func(path string) error {
			_, err := os.Stat(path)
			return err
		})
	})
)

// DetectSandbox reports the sandbox of the current process. The result is
// computed once.
func DetectSandbox() SandboxType { return detected() }

// SpawnPrefixFor returns the argv prefix that runs a host program from
// inside st; nil for SandboxNone.
func SpawnPrefixFor(st SandboxType) []string {
	prefix := hostSpawn[st]
	if prefix == nil {
		return nil
	}
	return append([]string(nil), prefix...)
}

// detectSandboxFrom checks Flatpak's marker file first, then Snap's environment.
func detectSandboxFrom(getenv func(string) string, stat func(string) error) SandboxType {
	switch {
	case stat("/.flatpak-info") == nil:
		return SandboxFlatpak
	case getenv("SNAP_NAME") != "":
		return SandboxSnap
	default:
		return SandboxNone
	}
}
