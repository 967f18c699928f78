//go:build windows

package commands

import (
	"fmt"
	"os"
)

// stopProcess terminates the daemon. Force mode uses Kill; graceful mode
// sends os.Interrupt.
func stopProcess(pid int, force bool) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return errProcessDone
	}

	if force {
		fmt.Printf("Killing process %d...\n", pid)
		err = process.Kill()
	} else {
		fmt.Printf("Sending interrupt to process %d...\n", pid)
		err = process.Signal(os.Interrupt)
	}

	if err == os.ErrProcessDone {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}
	return nil
}
