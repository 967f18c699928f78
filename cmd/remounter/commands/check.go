package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/remounter/internal/cli/timeutil"
	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/config"
	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

var checkCmd = &cobra.Command{
	Use:   "check [host] [shares]",
	Short: "Probe every share once",
	Long: `Probe every configured share once, concurrently, and print what the
monitor would see. Nothing is mounted or unmounted.

The command exits non-zero when any share is not mounted or is stale.

Examples:
  # Check the shares from the configuration file
  remounter check

  # Check two shares on nas.local
  remounter check nas.local docs,media -o json`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCheck,
}

// CheckResult is the outcome of probing one share.
type CheckResult struct {
	Share      string `json:"share" yaml:"share"`
	Host       string `json:"host" yaml:"host"`
	MountPoint string `json:"mount_point" yaml:"mount_point"`
	Signal     string `json:"signal" yaml:"signal"`
	Device     string `json:"device,omitempty" yaml:"device,omitempty"`
	FSType     string `json:"fstype,omitempty" yaml:"fstype,omitempty"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	Cause      string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// CheckResults renders as a table.
type CheckResults []CheckResult

func (r CheckResults) Headers() []string {
	return []string{"Share", "Host", "Mount Point", "Signal", "Took", "Cause"}
}

func (r CheckResults) Rows() [][]string {
	colors := cmdutil.Colors()
	rows := make([][]string, 0, len(r))
	for _, c := range r {
		rows = append(rows, []string{
			c.Share,
			c.Host,
			c.MountPoint,
			colors.Health(c.Signal),
			timeutil.FormatDuration(time.Duration(c.DurationMs) * time.Millisecond),
			cmdutil.EmptyOr(c.Cause, "-"),
		})
	}
	return rows
}

// Healthy reports whether every share is mounted and responsive.
func (r CheckResults) Healthy() bool {
	for _, c := range r {
		if c.Signal != mount.MountedHealthy.String() {
			return false
		}
	}
	return true
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	applyArgs(cfg, args, "")

	descs, err := cfg.Descriptors()
	if err != nil {
		return err
	}

	prober := mount.NewProber(mount.SystemTable{}, cfg.Monitor.ProbeTimeout)
	results, err := probeAll(cmd.Context(), prober, descs)
	if err != nil {
		return err
	}

	if err := cmdutil.PrintOutput(cmd.OutOrStdout(), results, len(results) == 0, "No shares configured.", results); err != nil {
		return err
	}
	if !results.Healthy() {
		return errors.New("some shares are not mounted or not responding")
	}
	return nil
}

// probeAll probes every descriptor concurrently. Results keep the order of
// descs.
func probeAll(ctx context.Context, prober monitor.Prober, descs []share.Descriptor) (CheckResults, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make(CheckResults, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range descs {
		g.Go(func() error {
			res := prober.Probe(gctx, d)
			results[i] = CheckResult{
				Share:      d.Name,
				Host:       d.Host,
				MountPoint: d.MountPoint,
				Signal:     res.Signal.String(),
				Device:     res.Entry.Device,
				FSType:     res.Entry.FSType,
				DurationMs: res.Duration.Milliseconds(),
			}
			if res.Cause != nil {
				results[i].Cause = res.Cause.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probing shares: %w", err)
	}
	return results, nil
}
