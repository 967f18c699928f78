package main

import (
	"github.com/marmos91/remounter/cmd/remounter/commands"
	"github.com/marmos91/remounter/internal/cmdutil"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		cmdutil.Exit("Error: %v", err)
	}
}
