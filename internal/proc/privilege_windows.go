//go:build windows

package proc

import "golang.org/x/sys/windows"

// Privileged reports whether the process runs elevated.
func Privileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
