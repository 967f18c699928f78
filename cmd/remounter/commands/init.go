package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/remounter/internal/cli/prompt"
	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/config"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a remounter configuration file.

By default a sample file is created at $XDG_CONFIG_HOME/remounter/config.yaml.
With --interactive the host, shares and post-mount script are asked for.

Examples:
  # Write the sample configuration
  remounter init

  # Answer a few questions instead
  remounter init --interactive

  # Write to a custom path, replacing an existing file
  remounter init --config /etc/remounter/config.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the host, shares and script")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.SampleConfig()
	if initInteractive {
		if err := askConfig(cfg); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := config.WriteConfig(configPath, cfg, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Review the shares and mount settings in the file")
	fmt.Println("  2. Check them once with: remounter check")
	fmt.Println("  3. Start monitoring with: remounter start")
	return nil
}

// askConfig fills cfg from interactive prompts.
func askConfig(cfg *config.Config) error {
	host, err := prompt.InputWithValidation("SMB host", cfg.Host, prompt.ValidateRequired)
	if err != nil {
		return err
	}
	cfg.Host = host

	list, err := prompt.InputWithValidation("Shares (comma-separated)", cfg.Shares[0].Name, prompt.ValidateShareList)
	if err != nil {
		return err
	}
	cfg.Shares = cfg.Shares[:0]
	for _, name := range share.ParseList(list) {
		cfg.Shares = append(cfg.Shares, config.ShareConfig{Name: name})
	}

	method, err := prompt.Select("Mount method", []prompt.Option{
		{Label: "auto", Value: string(mount.MethodAuto), Description: "osascript on macOS, mount -t cifs elsewhere"},
		{Label: "osascript", Value: string(mount.MethodOSAScript), Description: "Finder mount with keychain credentials, under /Volumes"},
		{Label: "mount_smbfs", Value: string(mount.MethodMountSMBFS), Description: "macOS mount_smbfs at any mount point"},
		{Label: "cifs", Value: string(mount.MethodCIFS), Description: "Linux mount -t cifs"},
	})
	if err != nil {
		return err
	}
	cfg.Mount.Method = method

	script, err := prompt.InputWithValidation("Post-mount script (optional)", "", prompt.ValidateOptionalPath)
	if err != nil {
		return err
	}
	cfg.Hook.Script = script

	port, err := prompt.InputPort("API port", cfg.API.Port)
	if err != nil {
		return err
	}
	cfg.API.Port = port

	return nil
}
