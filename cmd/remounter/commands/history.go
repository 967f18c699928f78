package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/remounter/internal/cli/timeutil"
	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/config"
	"github.com/marmos91/remounter/pkg/journal"
	"github.com/marmos91/remounter/pkg/share"
)

var (
	historyShare  string
	historyLimit  int
	historySince  time.Duration
	historyFailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent remount attempts",
	Long: `List remount attempts recorded in the journal, newest first.

The journal is read directly, so this works whether or not the daemon is
running.

Examples:
  # Last 50 attempts
  remounter history

  # Failed attempts on docs during the last day
  remounter history --share docs --failed --since 24h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyShare, "share", "", "Only show attempts for this share")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", journal.DefaultLimit, "Maximum number of attempts")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only show attempts newer than this (e.g. 24h)")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only show failed attempts")
}

// AttemptTable renders journal entries as a table.
type AttemptTable []*journal.Entry

func (t AttemptTable) Headers() []string {
	return []string{"Started", "Share", "Trigger", "Result", "Took", "Failures", "Error"}
}

func (t AttemptTable) Rows() [][]string {
	colors := cmdutil.Colors()
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		result := colors.Green("ok")
		if !e.Success {
			result = colors.Red("failed")
		}
		rows = append(rows, []string{
			timeutil.FormatTime(e.StartedAt),
			e.Share,
			e.Trigger,
			result,
			timeutil.FormatDuration(e.Duration()),
			fmt.Sprintf("%d", e.Failures),
			cmdutil.EmptyOr(e.Error, "-"),
		})
	}
	return rows
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if !cfg.Journal.IsEnabled() {
		return errors.New("the journal is disabled in the configuration (journal.enabled: false)")
	}
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no journal at %s\n\nIt is created the first time 'remounter start' runs", cfg.Journal.Path)
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	f := journal.Filter{
		Share:      share.NormalizeName(historyShare),
		Limit:      historyLimit,
		FailedOnly: historyFailed,
	}
	if historySince > 0 {
		f.Since = time.Now().Add(-historySince)
	}

	entries, err := j.List(cmd.Context(), f)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), entries, len(entries) == 0, "No remount attempts recorded.", AttemptTable(entries))
}
