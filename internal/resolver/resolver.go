// Package resolver decides which single media action (play or pause) the
// picture-in-picture overlay should surface for the pinned app, and fans the
// derived action list out to registered listeners.
package resolver

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pipwatch/pipwatch/internal/pinned"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rs/zerolog"
)

// listenerEntry pairs a listener with its registration id. Entries are kept
// in insertion order; notification order follows registration order.
type listenerEntry struct {
	id       string
	listener ActionListener
}

// Resolver observes the media-session registry and the pinned-app identity,
// keeping at most one session active at a time. All state is guarded by an
// internal mutex since callbacks may arrive from multiple goroutines.
type Resolver struct {
	registry session.Registry
	tracker  pinned.Tracker
	logger   zerolog.Logger

	playAction  MediaAction
	pauseAction MediaAction

	mu        sync.Mutex
	active    session.Controller
	stopWatch func()
	listeners []listenerEntry
}

// New creates a Resolver. The two media actions are created once here and
// reused for every notification.
func New(registry session.Registry, tracker pinned.Tracker, logger zerolog.Logger) *Resolver {
	r := &Resolver{
		registry: registry,
		tracker:  tracker,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
	r.playAction = MediaAction{
		Kind:     KindPlay,
		Label:    "Play",
		IconName: "media-playback-start",
		Trigger: func(ctx context.Context) error {
			return r.HandleControl(ctx, EventPlay)
		},
	}
	r.pauseAction = MediaAction{
		Kind:     KindPause,
		Label:    "Pause",
		IconName: "media-playback-pause",
		Trigger: func(ctx context.Context) error {
			return r.HandleControl(ctx, EventPause)
		},
	}
	return r
}

// OnActivityPinned re-resolves the active session from the full current
// session list. Call when a new app becomes the pinned activity, or when the
// registry reports a session change.
func (r *Resolver) OnActivityPinned(ctx context.Context) {
	sessions, err := r.registry.ActiveSessions(ctx)
	if err != nil {
		// Registry failures degrade to "no active session", never an error
		r.logger.Debug().Err(err).Msg("Failed to query active sessions")
		r.ResolveActive(ctx, nil)
		return
	}
	r.ResolveActive(ctx, sessions)
}

// ResolveActive scans sessions in list order for the first one owned by the
// pinned app and makes it the active session. If no app is pinned or no
// session matches, the active session becomes none.
func (r *Resolver) ResolveActive(ctx context.Context, sessions []session.Controller) {
	appID, ok, err := r.tracker.TopPinnedApp(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Failed to query pinned app")
		ok = false
	}
	if ok {
		for _, s := range sessions {
			if s.AppID() == appID {
				r.setActive(ctx, s)
				return
			}
		}
	}
	r.setActive(ctx, nil)
}

// setActive replaces the active session. Identical handles are a no-op: no
// unwatch/rewatch and no notification. Otherwise the old session's watch is
// torn down before the new one is adopted, so at most one playback watch
// exists at any time.
func (r *Resolver) setActive(ctx context.Context, ctrl session.Controller) {
	r.mu.Lock()

	if sameController(r.active, ctrl) {
		r.mu.Unlock()
		return
	}

	if r.stopWatch != nil {
		r.stopWatch()
		r.stopWatch = nil
	}
	r.active = ctrl
	if ctrl != nil {
		stop, err := ctrl.Watch(func() {
			r.onPlaybackChanged(context.Background())
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("app_id", ctrl.AppID()).
				Msg("Failed to watch playback state")
		} else {
			r.stopWatch = stop
		}
		r.logger.Info().Str("app_id", ctrl.AppID()).Str("session_id", ctrl.ID()).
			Msg("Active session changed")
	} else {
		r.logger.Info().Msg("No active session")
	}

	if len(r.listeners) == 0 {
		r.mu.Unlock()
		return
	}
	actions := r.computeActionsLocked(ctx)
	targets := r.snapshotListenersLocked()
	r.mu.Unlock()

	notify(targets, actions)
}

// onPlaybackChanged recomputes and broadcasts the action list after the
// active session reported a playback-state change
func (r *Resolver) onPlaybackChanged(ctx context.Context) {
	r.mu.Lock()
	if len(r.listeners) == 0 {
		r.mu.Unlock()
		return
	}
	actions := r.computeActionsLocked(ctx)
	targets := r.snapshotListenersLocked()
	r.mu.Unlock()

	notify(targets, actions)
}

// Actions returns the currently available action list (length 0 or 1)
func (r *Resolver) Actions(ctx context.Context) []MediaAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.computeActionsLocked(ctx)
}

// computeActionsLocked derives the 0-or-1-element action list from the
// active session's playback state. The offered action is the transition
// available from the current state: play while paused, pause while playing.
// Must be called with mu held.
func (r *Resolver) computeActionsLocked(ctx context.Context) []MediaAction {
	if r.active == nil {
		return nil
	}
	state, err := r.active.PlaybackState(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Failed to query playback state")
		return nil
	}
	if state == nil {
		return nil
	}

	if !state.Playing() && state.Capabilities.Has(session.CapPlay) {
		return []MediaAction{r.playAction}
	}
	if state.Playing() && state.Capabilities.Has(session.CapPause) {
		return []MediaAction{r.pauseAction}
	}
	return nil
}

// AddListener registers l and immediately delivers the current action list
// to it, even when empty. Registering an already-present listener is a no-op.
func (r *Resolver) AddListener(ctx context.Context, l ActionListener) {
	r.mu.Lock()
	for _, e := range r.listeners {
		if e.listener == l {
			r.mu.Unlock()
			return
		}
	}
	id := uuid.NewString()
	r.listeners = append(r.listeners, listenerEntry{id: id, listener: l})
	actions := r.computeActionsLocked(ctx)
	r.mu.Unlock()

	r.logger.Debug().Str("listener_id", id).Msg("Listener added")
	l.OnMediaActionsChanged(actions)
}

// RemoveListener delivers a final empty action list to l, then unregisters it
func (r *Resolver) RemoveListener(l ActionListener) {
	l.OnMediaActionsChanged(nil)

	r.mu.Lock()
	for i, e := range r.listeners {
		if e.listener == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
}

// ListenFunc registers fn as a listener and returns a handle that can be
// passed to RemoveListener
func (r *Resolver) ListenFunc(ctx context.Context, fn func(actions []MediaAction)) ActionListener {
	l := &listenerFunc{id: uuid.NewString(), fn: fn}
	r.AddListener(ctx, l)
	return l
}

// HandleControl forwards an inbound button-press event to the active
// session's transport controls. With no active session this is a guarded
// no-op rather than a crash.
func (r *Resolver) HandleControl(ctx context.Context, event ControlEvent) error {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active == nil {
		r.logger.Debug().Stringer("event", event).
			Msg("Control event dropped, no active session")
		return nil
	}

	switch event {
	case EventPlay:
		return active.Play(ctx)
	case EventPause:
		return active.Pause(ctx)
	case EventToggle:
		state, err := active.PlaybackState(ctx)
		if err != nil {
			return err
		}
		if state != nil && state.Playing() {
			return active.Pause(ctx)
		}
		return active.Play(ctx)
	default:
		r.logger.Debug().Stringer("event", event).Msg("Unknown control event")
		return nil
	}
}

// Close tears down the playback watch and drops the active session
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.stopWatch != nil {
		r.stopWatch()
		r.stopWatch = nil
	}
	r.active = nil
	r.mu.Unlock()
}

// snapshotListenersLocked copies the listener list so notification can
// happen outside the lock, keeping listener callbacks free to call back
// into the resolver. Must be called with mu held.
func (r *Resolver) snapshotListenersLocked() []listenerEntry {
	targets := make([]listenerEntry, len(r.listeners))
	copy(targets, r.listeners)
	return targets
}

// notify delivers actions to each listener in registration order
func notify(targets []listenerEntry, actions []MediaAction) {
	for _, e := range targets {
		e.listener.OnMediaActionsChanged(actions)
	}
}

// sameController compares session handles by identity
func sameController(a, b session.Controller) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}
