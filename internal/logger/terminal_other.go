//go:build !darwin && !linux

package logger

import "os"

// isTerminal disables color where termios is unavailable.
func isTerminal(_ *os.File) bool {
	return false
}
