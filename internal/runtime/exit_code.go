// SPDX-License-Identifier: MPL-2.0

package runtime

import "strconv"

// maxExitCode is the largest status a POSIX process can report.
const maxExitCode = 255

// ExitCode is a process exit status. Zero means success.
type ExitCode int

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// exitCodeFrom maps an OS-reported status into 0-255. Windows reports
// NTSTATUS values outside that range and a killed process reports -1;
// both become 1.
func exitCodeFrom(status int) ExitCode {
	if status < 0 || status > maxExitCode {
		return 1
	}
	return ExitCode(status)
}
