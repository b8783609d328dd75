package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pipwatch/pipwatch/internal/config"
	"github.com/pipwatch/pipwatch/internal/control"
	"github.com/pipwatch/pipwatch/internal/daemon"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	daemonLogFile   string
	daemonLogLevel  string
	daemonSocket    string
	daemonPinnedApp string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the media action resolver daemon",
	Long: `Run the resolver daemon that watches media sessions and resolves the
play-or-pause action for the pinned app.

The daemon will:
- Enumerate MPRIS media sessions on the session bus and watch for changes
- Track the pinned app identity reported by compositor hooks
- Resolve the session owned by the pinned app and watch its playback state
- Publish the derived action list on the bus (org.pipwatch.Resolver1)
- Accept play/pause/pinned events on the control socket

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for systemd).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	// Command-line flags
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonSocket, "socket", "", "Control socket path (default: $XDG_RUNTIME_DIR/pipwatch/control.sock)")
	daemonCmd.Flags().StringVar(&daemonPinnedApp, "pinned-app", "", "Treat this app id as pinned at startup")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := daemonLogLevel
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger := setupLogger(daemonLogFile, logLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting pipwatch daemon")

	socketPath := daemonSocket
	if socketPath == "" {
		socketPath = cfg.SocketPath
	}
	if socketPath == "" {
		socketPath = control.SocketPath()
	}

	pinnedApp := daemonPinnedApp
	if pinnedApp == "" {
		pinnedApp = cfg.PinnedApp
	}

	// Create the media session registry
	registry, err := session.NewMPRISRegistry(logger)
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}
	defer registry.Close()

	// Create the action announcer. Not fatal if the bus name is taken or
	// announcing fails: the daemon still logs action changes.
	announcer, err := daemon.NewAnnouncer(logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Action announcer unavailable")
		announcer = nil
	}

	daemonCfg := daemon.Config{
		SocketPath:      socketPath,
		RefreshInterval: time.Duration(cfg.RefreshInterval) * time.Second,
		PinnedApp:       pinnedApp,
	}

	d := daemon.New(daemonCfg, registry, announcer, logger)

	// Run daemon (blocks until shutdown signal)
	if err := d.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	// Graceful shutdown
	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
