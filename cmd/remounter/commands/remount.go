package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/remounter/internal/cli/output"
	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/apiclient"
)

var remountTimeout time.Duration

var remountCmd = &cobra.Command{
	Use:   "remount <share>",
	Short: "Force a remount of one share",
	Long: `Ask the running daemon to unmount and mount a share now, ignoring the
backoff delay. The command waits for the attempt to finish.

A share that is already being remounted is left alone and the command
fails.

Examples:
  remounter remount docs`,
	Args: cobra.ExactArgs(1),
	RunE: runRemount,
}

func init() {
	remountCmd.Flags().DurationVar(&remountTimeout, "timeout", 3*time.Minute, "How long to wait for the remount")
}

func runRemount(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	name := args[0]
	res, err := client.WithTimeout(remountTimeout).Remount(name)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.IsNotFound():
				return fmt.Errorf("share %q is not monitored", name)
			case apiErr.IsConflict():
				return fmt.Errorf("share %q is already being remounted", name)
			}
		}
		return cmdutil.DaemonError(err)
	}

	format, err := cmdutil.OutputFormat()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format != output.FormatTable {
		if err := output.Print(out, format, res); err != nil {
			return err
		}
	} else if res.Success {
		_, _ = fmt.Fprintln(out, cmdutil.Colors().Green(fmt.Sprintf("Share %s remounted at %s", res.Share.Name, res.Share.MountPoint)))
	}

	if !res.Success {
		return fmt.Errorf("remount of %s failed: %s", name, res.Error)
	}
	return nil
}
