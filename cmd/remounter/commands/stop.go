package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the remounter daemon",
	Long: `Stop a running remounter daemon.

By default, sends SIGTERM: the daemon stops polling, lets remounts that are
already running finish and waits for post-mount scripts up to
shutdown_timeout. Use --force for immediate termination with SIGKILL.

Examples:
  # Stop the daemon (uses default PID file)
  remounter stop

  # Stop using a custom PID file
  remounter stop --pid-file /var/run/remounter.pid

  # Force stop (SIGKILL)
  remounter stop --force`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/remounter/remounter.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill (SIGKILL) instead of graceful shutdown (SIGTERM)")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("PID file not found: %s\n\nIs remounter running?", pidPath)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	err = stopProcess(pid, stopForce)
	if errors.Is(err, errProcessDone) {
		fmt.Println("remounter already stopped")
		_ = os.Remove(pidPath)
		return nil
	}
	if err != nil {
		return err
	}

	if stopForce {
		_ = os.Remove(pidPath)
		fmt.Println("remounter terminated")
	} else {
		fmt.Println("Shutdown signal sent. remounter will stop gracefully.")
	}
	return nil
}
