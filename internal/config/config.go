package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Output format template for the actions command
	// Default: "{{.Label}}"
	OutputFormat string

	// Fixed output width for the actions command (0 = disabled)
	OutputWidth int

	// Control socket path (empty = default under XDG_RUNTIME_DIR)
	SocketPath string

	// App id to treat as pinned when no compositor hook reports one
	PinnedApp string

	// How often the daemon defensively re-resolves the active session
	// (in seconds)
	RefreshInterval int

	// Default log level for the daemon
	LogLevel string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("output_format", "{{.Label}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("socket_path", "")
	v.SetDefault("pinned_app", "")
	v.SetDefault("refresh_interval", 15)
	v.SetDefault("log_level", "info")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	v.SetEnvPrefix("PIPWATCH")
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		OutputFormat:    v.GetString("output_format"),
		OutputWidth:     v.GetInt("output_width"),
		SocketPath:      v.GetString("socket_path"),
		PinnedApp:       v.GetString("pinned_app"),
		RefreshInterval: v.GetInt("refresh_interval"),
		LogLevel:        v.GetString("log_level"),
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "pipwatch")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	// Set config file path
	configDir := getConfigDir()
	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("socket_path", c.SocketPath)
	v.Set("pinned_app", c.PinnedApp)
	v.Set("refresh_interval", c.RefreshInterval)
	v.Set("log_level", c.LogLevel)

	// Write to file
	return v.WriteConfigAs(configFile)
}
