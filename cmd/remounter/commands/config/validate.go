package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/remounter/internal/cli/output"
	"github.com/marmos91/remounter/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the remounter configuration file.

Checks for syntax errors, invalid values, missing hosts and duplicate mount
points, then prints the shares as the monitor would see them.

Examples:
  # Validate default config
  remounter config validate

  # Validate specific config file
  remounter config validate --config /etc/remounter/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configFile())
	if err != nil {
		return err
	}

	descs, err := cfg.Descriptors()
	if err != nil {
		return err
	}

	displayPath := configFile()
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	var warnings []string
	if cfg.Hook.Script == "" {
		warnings = append(warnings, "No post-mount script configured")
	}
	if !cfg.Mount.ReachabilityEnabled() {
		warnings = append(warnings, "Reachability check disabled: mounts of an offline host wait for mount_timeout")
	}
	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nShares:")
	table := output.NewTable("Share", "Host", "Mount Point", "URL")
	for _, d := range descs {
		table.AddRow(d.Name, d.Host, d.MountPoint, d.URL(cfg.Mount.Username))
	}
	if err := output.PrintTable(out, table); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	_, _ = fmt.Fprintf(out, "  Mount method:    %s\n", cfg.Mount.Method)
	_, _ = fmt.Fprintf(out, "  Poll interval:   %s\n", cfg.Monitor.PollInterval)
	_, _ = fmt.Fprintf(out, "  Backoff:         %s .. %s\n", cfg.Backoff.Base, cfg.Backoff.Max)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}
