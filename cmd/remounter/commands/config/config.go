// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/remounter/internal/cmdutil"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage the remounter configuration file.

Use 'remounter init' to create a new configuration file.

Subcommands:
  edit      Open configuration in editor
  show      Display the effective configuration
  validate  Validate configuration and list the resolved shares
  schema    Generate JSON schema for IDE/validation`,
}

func init() {
	Cmd.AddCommand(editCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}

func configFile() string {
	return cmdutil.Flags.ConfigFile
}
