package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pipwatch/pipwatch/internal/config"
	"github.com/pipwatch/pipwatch/internal/pinned"
	"github.com/pipwatch/pipwatch/internal/resolver"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display a terminal UI for the resolved media action",
	Long: `Display a terminal-based user interface showing the media sessions on the
bus, the pinned app, and the action the overlay would surface, with
real-time updates.

This is a standalone monitor that talks to the session bus directly; it
does not require the daemon to be running.

Keys:
  space - trigger the displayed action
  q     - quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().String("app", "", "Pinned app id (overrides config)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	store := pinned.NewStore()
	if appID != "" {
		store.Set(appID)
	}
	res := resolver.New(registry, store, zerolog.Nop())
	defer res.Close()

	// Create tview application
	app := tview.NewApplication()

	// Create main layout components
	actionView := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	actionView.SetBorder(true).
		SetTitle(" Overlay Action ").
		SetTitleAlign(tview.AlignLeft)

	sessionsView := tview.NewTextView().
		SetDynamicColors(true)
	sessionsView.SetBorder(true).
		SetTitle(" Media Sessions ").
		SetTitleAlign(tview.AlignLeft)

	status := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]Press space to trigger the action, 'q' to quit[-]")

	// Create layout using Flex
	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(actionView, 0, 2, false).
		AddItem(sessionsView, 0, 3, false).
		AddItem(status, 1, 1, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Change detection caches
	var lastAction string
	var lastSessions string

	// current holds the latest delivered action list for the space key
	var current []resolver.MediaAction

	updateAction := func(actions []resolver.MediaAction) {
		var sb strings.Builder
		sb.WriteString("\n")
		pinnedID, ok, _ := store.TopPinnedApp(ctx)
		if !ok {
			sb.WriteString("[gray]No app pinned[-]\n")
		} else {
			sb.WriteString(fmt.Sprintf("[gray]Pinned:[-] [white]%s[-]\n", tview.Escape(pinnedID)))
		}
		if len(actions) == 0 {
			sb.WriteString("\n[gray]No action available[-]")
		} else {
			icon := "[green]▶[-]" // Play triangle
			if actions[0].Kind == resolver.KindPause {
				icon = "[yellow]⏸[-]" // Pause icon
			}
			sb.WriteString(fmt.Sprintf("\n%s [white::b]%s[-:-:-]", icon, tview.Escape(actions[0].Label)))
		}
		text := sb.String()

		app.QueueUpdateDraw(func() {
			// Mutate on the tview event loop, same as the key handler
			current = actions
			if text != lastAction {
				lastAction = text
				actionView.SetText(text)
			}
		})
	}

	updateSessions := func() {
		sessions, err := registry.ActiveSessions(ctx)
		var sb strings.Builder
		if err != nil {
			sb.WriteString(fmt.Sprintf("[red]%s[-]", tview.Escape(err.Error())))
		} else if len(sessions) == 0 {
			sb.WriteString("[gray]No media sessions on the bus[-]")
		} else {
			for _, s := range sessions {
				state, err := s.PlaybackState(ctx)
				statusStr := "unknown"
				if err == nil && state != nil {
					statusStr = state.Status.String()
				}
				color := "gray"
				if statusStr == "playing" {
					color = "green"
				}
				sb.WriteString(fmt.Sprintf("[white]%s[-]  [%s]%s[-]\n",
					tview.Escape(s.AppID()), color, statusStr))
			}
		}
		text := sb.String()

		app.QueueUpdateDraw(func() {
			if text != lastSessions {
				lastSessions = text
				sessionsView.SetText(text)
			}
		})
	}

	// The resolver pushes action changes; the ticker below handles the
	// sessions panel and re-resolution.
	listener := res.ListenFunc(ctx, updateAction)
	defer res.RemoveListener(listener)

	// Handle keyboard input
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			app.Stop()
			return nil
		case ' ':
			if len(current) > 0 {
				go func(a resolver.MediaAction) {
					tctx, tcancel := context.WithTimeout(ctx, 5*time.Second)
					defer tcancel()
					_ = a.Trigger(tctx)
				}(current[0])
			}
			return nil
		}
		return event
	})

	// Start refresh goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		// Initial resolution
		res.OnActivityPinned(ctx)
		updateSessions()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res.OnActivityPinned(ctx)
				updateAction(res.Actions(ctx))
				updateSessions()
			}
		}
	}()

	// Run application
	if err := app.SetRoot(flex, true).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
