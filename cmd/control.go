package cmd

import (
	"fmt"

	"github.com/pipwatch/pipwatch/internal/config"
	"github.com/pipwatch/pipwatch/internal/control"
	"github.com/spf13/cobra"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Press the overlay's play button",
	Long: `Send a play event to the running daemon. The daemon forwards it to the
transport controls of the pinned app's media session. A no-op if no
session is active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.ActionPlay, "")
	},
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Press the overlay's pause button",
	Long: `Send a pause event to the running daemon. The daemon forwards it to the
transport controls of the pinned app's media session. A no-op if no
session is active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.ActionPause, "")
	},
}

// toggleCmd represents the toggle command
var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle playback of the pinned app's session",
	Long: `Send a toggle event to the running daemon. The daemon sends play if the
active session is not playing and pause if it is.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.ActionToggle, "")
	},
}

// pinnedCmd represents the pinned command
var pinnedCmd = &cobra.Command{
	Use:   "pinned <app-id>",
	Short: "Report a newly pinned app to the daemon",
	Long: `Report that an app entered picture-in-picture mode. Intended to be called
from a compositor hook. The daemon re-resolves the active media session
for the given app id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.ActionPinned, args[0])
	},
}

// unpinnedCmd represents the unpinned command
var unpinnedCmd = &cobra.Command{
	Use:   "unpinned",
	Short: "Report that the pinned app left picture-in-picture mode",
	Long: `Report that no app is pinned anymore. Intended to be called from a
compositor hook. The daemon drops the active media session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.ActionUnpinned, "")
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(pinnedCmd)
	rootCmd.AddCommand(unpinnedCmd)
}

// sendControl delivers one event to the daemon's control socket
func sendControl(action, appID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = control.SocketPath()
	}

	client, err := control.Dial(socketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Send(action, appID); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}
	return nil
}
