package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/pipwatch/pipwatch/internal/config"
	"github.com/pipwatch/pipwatch/internal/pinned"
	"github.com/pipwatch/pipwatch/internal/resolver"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// actionsCmd represents the actions command
var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Display the media action available for the pinned app",
	Long: `Resolve and display the media action (play or pause) currently available
for the pinned app, by matching the app id against the MPRIS sessions on
the session bus.

The pinned app id is taken from the --app flag, falling back to the
pinned_app config key. The output format can be customized in
~/.config/pipwatch/config.yaml using a Go template. Available fields:
.Kind, .Label, .IconName

Exit codes:
  0 - An action is available
  1 - No pinned app, no matching session, or no action available`,
	RunE: runActions,
}

func init() {
	rootCmd.AddCommand(actionsCmd)

	// Add format flag to override config
	actionsCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	actionsCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	actionsCmd.Flags().String("app", "", "Pinned app id (overrides config)")
}

func runActions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	appID, _ := cmd.Flags().GetString("app")
	if appID == "" {
		appID = cfg.PinnedApp
	}

	registry, err := session.NewMPRISRegistry(zerolog.Nop())
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}
	defer registry.Close()

	res := resolver.New(registry, pinned.Fixed(appID), zerolog.Nop())
	defer res.Close()
	res.OnActivityPinned(ctx)

	actions := res.Actions(ctx)

	// If no action is available, exit with code 1
	if len(actions) == 0 {
		os.Exit(1)
		return nil
	}

	// Format and print output
	output, err := formatAction(actions[0], cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding if requested
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}
	if width > 0 {
		output = padToWidth(output, width)
	}

	fmt.Println(output)
	return nil
}

// formatAction applies the template to the action data
func formatAction(action resolver.MediaAction, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, action); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text // no padding requested
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			// If width is too small, just return ellipsis truncated to width
			return runewidth.Truncate(ellipsis, width, "")
		}

		// Truncate to (width - ellipsisWidth) and add ellipsis
		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Ensure we're exactly at the target width (in case truncate was imprecise)
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			padding := strings.Repeat(" ", width-resultWidth)
			return result + padding
		} else if resultWidth > width {
			return runewidth.Truncate(result, width, "")
		}
		return result
	} else if currentWidth < width {
		// Pad with spaces
		padding := strings.Repeat(" ", width-currentWidth)
		return text + padding
	}

	return text // exactly the right width
}
