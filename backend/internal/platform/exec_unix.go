//go:build unix

package platform

import (
	"fmt"
	"os"
	"syscall"
)

// Reexec replaces the current process with a fresh copy of itself.
func Reexec() error {
	exe, err := executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("failed to re-execute %s: %w", exe, err)
	}

	return nil
}
