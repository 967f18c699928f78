package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/remounter/internal/cli/output"
	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/config"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and REMOUNTER_* environment
overrides are applied.

Table output is printed as YAML.

Examples:
  # Show as YAML
  remounter config show

  # Show as JSON
  remounter config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configFile())
	if err != nil {
		return err
	}

	format, err := cmdutil.OutputFormat()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format != output.FormatJSON {
		return output.PrintYAML(out, cfg)
	}

	// Go through YAML so JSON keys match the file.
	tree, err := yamlTree(cfg)
	if err != nil {
		return err
	}
	return output.PrintJSON(out, tree)
}

func yamlTree(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return tree, nil
}
