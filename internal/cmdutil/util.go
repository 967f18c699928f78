// Package cmdutil holds helpers shared by the remounter commands.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/remounter/internal/cli/output"
	"github.com/marmos91/remounter/internal/cli/prompt"
	"github.com/marmos91/remounter/pkg/apiclient"
	"github.com/marmos91/remounter/pkg/config"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	ServerURL  string
	Output     string
	NoColor    bool
}

// Stderr receives error messages. Tests replace it.
var Stderr io.Writer = os.Stderr

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	_, _ = fmt.Fprintf(Stderr, format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}

// OutputFormat returns the parsed -o flag.
func OutputFormat() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// Colors returns the colorizer for table output.
func Colors() output.Colorizer {
	return output.Colorizer{Enabled: !Flags.NoColor && os.Getenv("NO_COLOR") == ""}
}

// PrintOutput prints data as JSON or YAML, or renders table. For table
// output an empty result prints emptyMsg instead.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, table output.TableRenderer) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}

	if format != output.FormatTable {
		return output.Print(w, format, data)
	}
	if isEmpty {
		_, _ = fmt.Fprintln(w, emptyMsg)
		return nil
	}
	return output.PrintTable(w, table)
}

// LoadConfig loads the configuration named by --config, or the default one.
func LoadConfig() (*config.Config, error) {
	return config.Load(Flags.ConfigFile)
}

// GetClient returns a client for the running daemon. The --server flag
// wins over the API address in the configuration.
func GetClient() (*apiclient.Client, error) {
	if Flags.ServerURL != "" {
		return apiclient.New(Flags.ServerURL), nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.API.IsEnabled() {
		return nil, errors.New("the API is disabled in the configuration (api.enabled: false)")
	}
	return apiclient.New(cfg.API.BaseURL()), nil
}

// DaemonError rewrites connection failures into a hint that the daemon is
// not running.
func DaemonError(err error) error {
	var apiErr *apiclient.APIError
	if err == nil || errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("cannot reach remounter daemon: %w\n\nIs it running? Start it with 'remounter start'", err)
}

// HandleAbort turns an aborted prompt into a clean exit.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// EmptyOr returns value, or fallback when value is empty.
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// BoolToYesNo converts a boolean to "yes" or "no".
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
