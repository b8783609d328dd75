package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pipwatch/pipwatch/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the pipwatch daemon as a systemd user service",
	Long: `Install the pipwatch daemon as a systemd user service that starts with the
graphical session.

This command will:
  - Generate a systemd user unit for the pipwatch daemon
  - Install it to ~/.config/systemd/user/
  - Reload the user daemon and enable the service
  - Start the daemon

The daemon will run in the background and resolve the play/pause action
for the pinned app whenever a media session is active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		// Get the log path
		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}

		// Create log directory if it doesn't exist
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		// Generate unit
		unitContent, err := daemon.GenerateUnit(daemon.UnitConfig{
			BinaryPath: binaryPath,
			LogPath:    logPath,
		})
		if err != nil {
			return fmt.Errorf("failed to generate unit: %w", err)
		}

		// Get unit path
		unitPath, err := daemon.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		// Create the user unit directory if it doesn't exist
		unitDir := filepath.Dir(unitPath)
		if err := os.MkdirAll(unitDir, 0755); err != nil {
			return fmt.Errorf("failed to create unit directory: %w", err)
		}

		// Check if the unit already exists
		if _, err := os.Stat(unitPath); err == nil {
			fmt.Println("Daemon is already installed. Stopping it first...")
			if err := stopService(); err != nil {
				fmt.Printf("Warning: failed to stop existing daemon: %v\n", err)
			}
		}

		// Write unit file
		if err := os.WriteFile(unitPath, []byte(unitContent), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		fmt.Printf("✓ Installed unit to %s\n", unitPath)

		// Reload, enable and start the service
		if err := systemctl("daemon-reload"); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}
		if err := systemctl("enable", "--now", "pipwatch.service"); err != nil {
			return fmt.Errorf("failed to enable service: %w", err)
		}

		fmt.Println("✓ Daemon enabled and started successfully")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nThe pipwatch daemon is now running and will start with your session.")
		fmt.Println("\nYou can check the daemon status with:")
		fmt.Println("  systemctl --user status pipwatch")
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  pipwatch uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// systemctl runs a systemctl --user command
func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return fmt.Errorf("systemctl %s failed: %s", args[0], string(output))
		}
		return fmt.Errorf("systemctl %s failed: %w", args[0], err)
	}
	return nil
}

// stopService stops and disables the running service
func stopService() error {
	return systemctl("disable", "--now", "pipwatch.service")
}
