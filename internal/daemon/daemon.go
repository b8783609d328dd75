package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pipwatch/pipwatch/internal/control"
	"github.com/pipwatch/pipwatch/internal/pinned"
	"github.com/pipwatch/pipwatch/internal/resolver"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rs/zerolog"
)

// Config holds daemon configuration
type Config struct {
	SocketPath      string        // Control socket path
	RefreshInterval time.Duration // How often to defensively re-resolve
	PinnedApp       string        // Initial pinned app id (optional)
}

// task is one unit of work for the daemon's event loop. Registry callbacks,
// control events, and the refresh ticker all funnel through the loop, so
// resolver inputs are processed on a single goroutine.
type task struct {
	fn   func(ctx context.Context) error
	done chan error // nil for fire-and-forget tasks
}

// Daemon wires the session registry, the pinned-app store, the resolver,
// and the control channel together
type Daemon struct {
	config    Config
	registry  session.Registry
	store     *pinned.Store
	res       *resolver.Resolver
	ctrl      *control.Server
	announcer *Announcer
	logger    zerolog.Logger

	tasks chan task
}

// New creates a new Daemon instance. The announcer is optional; without it
// action changes are only logged.
func New(cfg Config, registry session.Registry, announcer *Announcer, logger zerolog.Logger) *Daemon {
	store := pinned.NewStore()
	if cfg.PinnedApp != "" {
		store.Set(cfg.PinnedApp)
	}

	d := &Daemon{
		config:    cfg,
		registry:  registry,
		store:     store,
		announcer: announcer,
		logger:    logger.With().Str("component", "daemon").Logger(),
		tasks:     make(chan task, 16),
	}
	d.res = resolver.New(registry, store, logger)
	d.ctrl = control.NewServer(cfg.SocketPath, d.handleControl, logger)
	return d
}

// Resolver exposes the daemon's resolver, mainly for tests
func (d *Daemon) Resolver() *resolver.Resolver {
	return d.res
}

// Run starts the daemon and blocks until a shutdown signal is received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// run is the main daemon loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")

	// Actions listener: log changes and announce them to the overlay
	d.res.ListenFunc(ctx, func(actions []resolver.MediaAction) {
		kinds := make([]string, len(actions))
		for i, a := range actions {
			kinds[i] = a.Kind.String()
		}
		d.logger.Info().Strs("actions", kinds).Msg("Media actions changed")
		if d.announcer != nil {
			d.announcer.Broadcast(kinds)
		}
	})

	if err := d.ctrl.Start(); err != nil {
		return fmt.Errorf("failed to start control server: %w", err)
	}

	stopWatch, err := d.registry.Watch(func() {
		d.enqueue(func(ctx context.Context) error {
			d.res.OnActivityPinned(ctx)
			return nil
		})
	})
	if err != nil {
		d.ctrl.Close()
		return fmt.Errorf("failed to watch session registry: %w", err)
	}

	// Initial resolution
	d.res.OnActivityPinned(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.eventLoop(ctx)
	}()

	wg.Wait()

	stopWatch()
	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// eventLoop serializes all resolver inputs onto this goroutine
func (d *Daemon) eventLoop(ctx context.Context) {
	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-d.tasks:
			err := t.fn(ctx)
			if err != nil {
				d.logger.Debug().Err(err).Msg("Task failed")
			}
			if t.done != nil {
				t.done <- err
			}
		case <-ticker.C:
			// Re-resolve in case a registry signal was missed
			d.res.OnActivityPinned(ctx)
		}
	}
}

// enqueue posts a fire-and-forget task to the event loop, dropping it if
// the loop is backed up (the refresh ticker will catch up)
func (d *Daemon) enqueue(fn func(ctx context.Context) error) {
	select {
	case d.tasks <- task{fn: fn}:
	default:
		d.logger.Warn().Msg("Event loop backed up, dropping task")
	}
}

// dispatch posts a task to the event loop and waits for its result
func (d *Daemon) dispatch(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	select {
	case d.tasks <- task{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleControl maps decoded control requests onto resolver operations.
// Runs on the control server's connection goroutine, so the work is
// dispatched to the event loop.
func (d *Daemon) handleControl(ctx context.Context, req control.Request) error {
	switch req.Action {
	case control.ActionPlay:
		return d.dispatch(ctx, func(ctx context.Context) error {
			return d.res.HandleControl(ctx, resolver.EventPlay)
		})
	case control.ActionPause:
		return d.dispatch(ctx, func(ctx context.Context) error {
			return d.res.HandleControl(ctx, resolver.EventPause)
		})
	case control.ActionToggle:
		return d.dispatch(ctx, func(ctx context.Context) error {
			return d.res.HandleControl(ctx, resolver.EventToggle)
		})
	case control.ActionPinned:
		if req.AppID == "" {
			return fmt.Errorf("pinned event requires app_id")
		}
		return d.dispatch(ctx, func(ctx context.Context) error {
			d.store.Set(req.AppID)
			d.res.OnActivityPinned(ctx)
			return nil
		})
	case control.ActionUnpinned:
		return d.dispatch(ctx, func(ctx context.Context) error {
			d.store.Clear()
			d.res.OnActivityPinned(ctx)
			return nil
		})
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
}

// Shutdown gracefully shuts down the daemon
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	d.res.Close()
	if d.announcer != nil {
		d.announcer.Close()
	}
	if err := d.ctrl.Close(); err != nil {
		return fmt.Errorf("failed to close control server: %w", err)
	}
	return nil
}
