//go:build !windows

package commands

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// stopProcess sends SIGTERM, or SIGKILL when forced, to the daemon.
func stopProcess(pid int, force bool) error {
	sig, name := unix.SIGTERM, "SIGTERM"
	if force {
		sig, name = unix.SIGKILL, "SIGKILL"
	}

	fmt.Printf("Sending %s to process %d...\n", name, pid)

	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}
	return nil
}
