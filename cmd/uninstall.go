package cmd

import (
	"fmt"
	"os"

	"github.com/pipwatch/pipwatch/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the pipwatch systemd user service",
	Long: `Uninstall the pipwatch daemon from systemd and stop it from running
automatically.

This command will:
  - Stop and disable the running daemon (if any)
  - Remove the unit file from ~/.config/systemd/user/

After uninstalling, the daemon will no longer start with your session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get unit path
		unitPath, err := daemon.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		// Check if the unit exists
		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Println("Daemon is not installed (unit not found)")
			return nil
		}

		// Stop and disable the daemon
		fmt.Println("Stopping daemon...")
		if err := stopService(); err != nil {
			fmt.Printf("Warning: failed to stop daemon: %v\n", err)
			fmt.Println("Continuing with unit removal...")
		} else {
			fmt.Println("✓ Daemon stopped")
		}

		// Remove unit file
		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		fmt.Printf("✓ Removed unit from %s\n", unitPath)

		if err := systemctl("daemon-reload"); err != nil {
			fmt.Printf("Warning: failed to reload systemd: %v\n", err)
		}

		fmt.Println("\nThe pipwatch daemon has been uninstalled successfully.")
		fmt.Println("It will no longer start with your session.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  pipwatch install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
