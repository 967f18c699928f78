package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/remounter/internal/cli/output"
	"github.com/marmos91/remounter/internal/cli/timeutil"
	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every monitored share",
	Long: `Display the running daemon and the state of every share it monitors:
health, consecutive failed attempts, when the next attempt is allowed and
the last error.

Examples:
  # Show share state
  remounter status

  # Output as JSON
  remounter status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// DaemonStatus is the output of the status command.
type DaemonStatus struct {
	Version   string            `json:"version,omitempty" yaml:"version,omitempty"`
	StartedAt string            `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string            `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Shares    []apiclient.Share `json:"shares" yaml:"shares"`
}

// ShareTable renders shares as a table.
type ShareTable struct {
	shares []apiclient.Share
	now    time.Time
	colors output.Colorizer
}

func (t ShareTable) Headers() []string {
	return []string{"Share", "Health", "Mount Point", "Failures", "Next Attempt", "Last Mounted", "Last Error"}
}

func (t ShareTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.shares))
	for _, s := range t.shares {
		next := "-"
		if s.NextEligibleAttempt != nil && s.NextEligibleAttempt.After(t.now) {
			next = timeutil.FormatRelative(s.NextEligibleAttempt, t.now)
		}
		rows = append(rows, []string{
			s.Name,
			t.colors.Health(s.Health),
			s.MountPoint,
			strconv.Itoa(s.ConsecutiveFailures),
			next,
			timeutil.FormatRelative(s.LastMountSucceededAt, t.now),
			cmdutil.EmptyOr(s.LastError, "-"),
		})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	status := DaemonStatus{}
	health, err := client.Health()
	if err != nil {
		return cmdutil.DaemonError(err)
	}
	status.Version, _ = health.Data["version"].(string)
	status.StartedAt, _ = health.Data["started_at"].(string)
	status.Uptime, _ = health.Data["uptime"].(string)

	status.Shares, err = client.ListShares()
	if err != nil {
		return cmdutil.DaemonError(err)
	}

	format, err := cmdutil.OutputFormat()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format != output.FormatTable {
		return output.Print(out, format, status)
	}
	return printStatusTable(out, status, time.Now())
}

func printStatusTable(w io.Writer, status DaemonStatus, now time.Time) error {
	pairs := [][2]string{{"Version", cmdutil.EmptyOr(status.Version, "-")}}
	if status.Uptime != "" {
		if d, err := time.ParseDuration(status.Uptime); err == nil {
			pairs = append(pairs, [2]string{"Uptime", timeutil.FormatDuration(d)})
		}
	}
	pairs = append(pairs, [2]string{"Shares", strconv.Itoa(len(status.Shares))})
	if err := output.PrintKeyValue(w, pairs); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w)

	if len(status.Shares) == 0 {
		_, _ = fmt.Fprintln(w, "No shares monitored.")
		return nil
	}
	return output.PrintTable(w, ShareTable{shares: status.Shares, now: now, colors: cmdutil.Colors()})
}
