package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipwatch",
	Short: "Media action resolver for picture-in-picture overlays",
	Long: `pipwatch bridges the compositor's picture-in-picture overlay with the
desktop's media sessions (MPRIS over D-Bus).

It runs as a background daemon that watches the active media sessions,
matches them against the currently pinned app, and resolves the single
play-or-pause action the overlay should surface. The derived action list
is published on the session bus and the overlay's button presses come
back in over a control socket.

It also provides CLI commands to query the current action and to inject
control events, useful for compositor hooks and scripting.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
