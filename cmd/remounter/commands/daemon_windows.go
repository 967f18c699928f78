//go:build windows

package commands

import (
	"fmt"
	"os"
)

// isProcessRunning reports whether the PID at pidPath can be opened.
func isProcessRunning(pidPath string) (int, bool) {
	pid, err := readPidFile(pidPath)
	if err != nil {
		return 0, false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	_ = p.Release()
	return pid, true
}

// startDaemon is not supported on Windows.
func startDaemon([]string) error {
	return fmt.Errorf("daemon mode is not supported on Windows, use --foreground")
}
