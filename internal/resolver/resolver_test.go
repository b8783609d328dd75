package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pipwatch/pipwatch/internal/pinned"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rs/zerolog"
)

// fakeController implements session.Controller for tests
type fakeController struct {
	mu       sync.Mutex
	id       string
	appID    string
	state    *session.PlaybackState
	stateErr error

	playCalls  int
	pauseCalls int

	watchFn      func()
	watchCount   int
	unwatchCount int
}

func (c *fakeController) ID() string    { return c.id }
func (c *fakeController) AppID() string { return c.appID }

func (c *fakeController) PlaybackState(ctx context.Context) (*session.PlaybackState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateErr != nil {
		return nil, c.stateErr
	}
	return c.state, nil
}

func (c *fakeController) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playCalls++
	return nil
}

func (c *fakeController) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseCalls++
	return nil
}

func (c *fakeController) Watch(fn func()) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchFn = fn
	c.watchCount++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.unwatchCount++
		c.watchFn = nil
	}, nil
}

// fireStateChange simulates a playback-state-changed notification
func (c *fakeController) fireStateChange() {
	c.mu.Lock()
	fn := c.watchFn
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeController) counts() (play, pause, watch, unwatch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playCalls, c.pauseCalls, c.watchCount, c.unwatchCount
}

// fakeRegistry implements session.Registry for tests
type fakeRegistry struct {
	mu       sync.Mutex
	sessions []session.Controller
	err      error
}

func (r *fakeRegistry) ActiveSessions(ctx context.Context) ([]session.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions, r.err
}

func (r *fakeRegistry) Watch(fn func()) (func(), error) {
	return func() {}, nil
}

func (r *fakeRegistry) Close() error { return nil }

func (r *fakeRegistry) setSessions(sessions []session.Controller) {
	r.mu.Lock()
	r.sessions = sessions
	r.mu.Unlock()
}

// recordingListener captures every delivered action list
type recordingListener struct {
	mu         sync.Mutex
	deliveries [][]MediaAction
}

func (l *recordingListener) OnMediaActionsChanged(actions []MediaAction) {
	l.mu.Lock()
	l.deliveries = append(l.deliveries, actions)
	l.mu.Unlock()
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deliveries)
}

func (l *recordingListener) last() []MediaAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.deliveries) == 0 {
		return nil
	}
	return l.deliveries[len(l.deliveries)-1]
}

func newTestResolver(t *testing.T, registry session.Registry, tracker pinned.Tracker) *Resolver {
	t.Helper()
	r := New(registry, tracker, zerolog.Nop())
	t.Cleanup(r.Close)
	return r
}

func pausedController(id, appID string) *fakeController {
	return &fakeController{
		id:    id,
		appID: appID,
		state: &session.PlaybackState{
			Status:       session.StatusPaused,
			Capabilities: session.CapPlay | session.CapPause,
		},
	}
}

func playingController(id, appID string) *fakeController {
	return &fakeController{
		id:    id,
		appID: appID,
		state: &session.PlaybackState{
			Status:       session.StatusPlaying,
			Capabilities: session.CapPlay | session.CapPause,
		},
	}
}

func TestResolveActive_PicksFirstMatchingSession(t *testing.T) {
	ctx := context.Background()

	first := pausedController("s1", "app.b")
	second := pausedController("s2", "app.b")
	other := pausedController("s3", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{other, first, second}}

	r := newTestResolver(t, reg, pinned.Fixed("app.b"))
	r.OnActivityPinned(ctx)

	_, _, w1, _ := first.counts()
	_, _, w2, _ := second.counts()
	if w1 != 1 {
		t.Errorf("expected first matching session to be watched, got %d watches", w1)
	}
	if w2 != 0 {
		t.Errorf("expected later matching session to be ignored, got %d watches", w2)
	}
}

func TestResolveActive_NoPinnedApp(t *testing.T) {
	ctx := context.Background()

	ctrl := playingController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed(""))
	r.OnActivityPinned(ctx)

	if got := r.Actions(ctx); len(got) != 0 {
		t.Errorf("expected no actions without a pinned app, got %d", len(got))
	}
}

func TestResolveActive_NoMatch(t *testing.T) {
	ctx := context.Background()

	reg := &fakeRegistry{sessions: []session.Controller{
		playingController("s1", "app.a"),
		pausedController("s2", "app.b"),
	}}

	r := newTestResolver(t, reg, pinned.Fixed("app.c"))
	r.OnActivityPinned(ctx)

	if got := r.Actions(ctx); len(got) != 0 {
		t.Errorf("expected no actions when no session matches, got %d", len(got))
	}
}

func TestResolveActive_RegistryError(t *testing.T) {
	ctx := context.Background()

	reg := &fakeRegistry{err: errors.New("bus gone")}
	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	if got := r.Actions(ctx); len(got) != 0 {
		t.Errorf("expected registry errors to degrade to no actions, got %d", len(got))
	}
}

func TestComputeActions(t *testing.T) {
	tests := []struct {
		name     string
		state    *session.PlaybackState
		stateErr error
		expected []ActionKind // nil means empty list
	}{
		{
			name: "paused and play-capable offers play",
			state: &session.PlaybackState{
				Status:       session.StatusPaused,
				Capabilities: session.CapPlay,
			},
			expected: []ActionKind{KindPlay},
		},
		{
			name: "playing and pause-capable offers pause",
			state: &session.PlaybackState{
				Status:       session.StatusPlaying,
				Capabilities: session.CapPause,
			},
			expected: []ActionKind{KindPause},
		},
		{
			name: "stopped and play-capable offers play",
			state: &session.PlaybackState{
				Status:       session.StatusStopped,
				Capabilities: session.CapPlay,
			},
			expected: []ActionKind{KindPlay},
		},
		{
			name: "paused without play capability offers nothing",
			state: &session.PlaybackState{
				Status:       session.StatusPaused,
				Capabilities: session.CapPause,
			},
			expected: nil,
		},
		{
			name: "playing without pause capability offers nothing",
			state: &session.PlaybackState{
				Status:       session.StatusPlaying,
				Capabilities: session.CapPlay,
			},
			expected: nil,
		},
		{
			name:     "no playback state offers nothing",
			state:    nil,
			expected: nil,
		},
		{
			name:     "state query error offers nothing",
			stateErr: errors.New("player gone"),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ctrl := &fakeController{
				id:       "s1",
				appID:    "app.a",
				state:    tt.state,
				stateErr: tt.stateErr,
			}
			reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

			r := newTestResolver(t, reg, pinned.Fixed("app.a"))
			r.OnActivityPinned(ctx)

			got := r.Actions(ctx)
			if len(got) > 1 {
				t.Fatalf("action list must have length 0 or 1, got %d", len(got))
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d actions, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if got[i].Kind != tt.expected[i] {
					t.Errorf("action %d: expected %s, got %s", i, tt.expected[i], got[i].Kind)
				}
			}
		})
	}
}

func TestAddListener_ImmediateDelivery(t *testing.T) {
	ctx := context.Background()

	ctrl := pausedController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	l := &recordingListener{}
	r.AddListener(ctx, l)

	if l.count() != 1 {
		t.Fatalf("expected immediate delivery on add, got %d deliveries", l.count())
	}
	if got := l.last(); len(got) != 1 || got[0].Kind != KindPlay {
		t.Errorf("expected [play] snapshot, got %v", got)
	}
}

func TestAddListener_ImmediateDeliveryWhenEmpty(t *testing.T) {
	ctx := context.Background()

	r := newTestResolver(t, &fakeRegistry{}, pinned.Fixed(""))

	l := &recordingListener{}
	r.AddListener(ctx, l)

	if l.count() != 1 {
		t.Fatalf("expected immediate delivery even when empty, got %d", l.count())
	}
	if got := l.last(); len(got) != 0 {
		t.Errorf("expected empty snapshot, got %v", got)
	}
}

func TestAddListener_DuplicateIsNoOp(t *testing.T) {
	ctx := context.Background()

	r := newTestResolver(t, &fakeRegistry{}, pinned.Fixed(""))

	l := &recordingListener{}
	r.AddListener(ctx, l)
	r.AddListener(ctx, l)

	if l.count() != 1 {
		t.Errorf("expected re-add to be a no-op, got %d deliveries", l.count())
	}
}

func TestRemoveListener_FinalEmptyDelivery(t *testing.T) {
	ctx := context.Background()

	ctrl := playingController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	l := &recordingListener{}
	r.AddListener(ctx, l) // delivery 1: [pause]
	r.RemoveListener(l)   // delivery 2: []

	if l.count() != 2 {
		t.Fatalf("expected final delivery on remove, got %d deliveries", l.count())
	}
	if got := l.last(); len(got) != 0 {
		t.Errorf("expected final empty delivery, got %v", got)
	}

	// Listener is gone: further changes must not reach it
	reg.setSessions(nil)
	r.OnActivityPinned(ctx)
	if l.count() != 2 {
		t.Errorf("removed listener still notified, got %d deliveries", l.count())
	}
}

func TestNotification_InsertionOrder(t *testing.T) {
	ctx := context.Background()

	ctrl := pausedController("s1", "app.a")
	reg := &fakeRegistry{}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))

	var mu sync.Mutex
	var order []string
	first := r.ListenFunc(ctx, func(actions []MediaAction) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	second := r.ListenFunc(ctx, func(actions []MediaAction) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})
	defer r.RemoveListener(first)
	defer r.RemoveListener(second)

	mu.Lock()
	order = nil
	mu.Unlock()

	reg.setSessions([]session.Controller{ctrl})
	r.OnActivityPinned(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected notification in registration order, got %v", order)
	}
}

func TestSetActive_IdenticalHandleIsNoOp(t *testing.T) {
	ctx := context.Background()

	ctrl := playingController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	l := &recordingListener{}
	r.AddListener(ctx, l)
	before := l.count()

	// Same session resolved again: no rewatch, no notification
	r.OnActivityPinned(ctx)

	_, _, watch, unwatch := ctrl.counts()
	if watch != 1 || unwatch != 0 {
		t.Errorf("expected no unwatch/rewatch for identical handle, got watch=%d unwatch=%d", watch, unwatch)
	}
	if l.count() != before {
		t.Errorf("expected no notification for identical handle, got %d new", l.count()-before)
	}
}

func TestSetActive_ReplacementTearsDownOldWatch(t *testing.T) {
	ctx := context.Background()

	old := playingController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{old}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	// A different session instance for the same app replaces the old one
	replacement := pausedController("s2", "app.a")
	reg.setSessions([]session.Controller{replacement})
	r.OnActivityPinned(ctx)

	_, _, _, oldUnwatch := old.counts()
	_, _, newWatch, _ := replacement.counts()
	if oldUnwatch != 1 {
		t.Errorf("expected old watch torn down exactly once, got %d", oldUnwatch)
	}
	if newWatch != 1 {
		t.Errorf("expected replacement watched exactly once, got %d", newWatch)
	}
}

func TestPlaybackChange_TriggersRecompute(t *testing.T) {
	ctx := context.Background()

	ctrl := playingController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	l := &recordingListener{}
	r.AddListener(ctx, l) // delivery 1: [pause]

	// Session pauses and reports the change
	ctrl.mu.Lock()
	ctrl.state = &session.PlaybackState{
		Status:       session.StatusPaused,
		Capabilities: session.CapPlay | session.CapPause,
	}
	ctrl.mu.Unlock()
	ctrl.fireStateChange()

	if l.count() != 2 {
		t.Fatalf("expected recompute on playback change, got %d deliveries", l.count())
	}
	if got := l.last(); len(got) != 1 || got[0].Kind != KindPlay {
		t.Errorf("expected [play] after pausing, got %v", got)
	}
}

func TestHandleControl_ForwardsToActiveSession(t *testing.T) {
	ctx := context.Background()

	ctrl := pausedController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	if err := r.HandleControl(ctx, EventPlay); err != nil {
		t.Fatalf("HandleControl(play): %v", err)
	}
	if err := r.HandleControl(ctx, EventPause); err != nil {
		t.Fatalf("HandleControl(pause): %v", err)
	}

	play, pause, _, _ := ctrl.counts()
	if play != 1 || pause != 1 {
		t.Errorf("expected one play and one pause, got play=%d pause=%d", play, pause)
	}
}

func TestHandleControl_Toggle(t *testing.T) {
	ctx := context.Background()

	ctrl := playingController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	// Playing: toggle pauses
	if err := r.HandleControl(ctx, EventToggle); err != nil {
		t.Fatalf("HandleControl(toggle): %v", err)
	}
	if _, pause, _, _ := ctrl.counts(); pause != 1 {
		t.Errorf("expected toggle to pause a playing session, pause=%d", pause)
	}

	// Paused: toggle plays
	ctrl.mu.Lock()
	ctrl.state = &session.PlaybackState{
		Status:       session.StatusPaused,
		Capabilities: session.CapPlay,
	}
	ctrl.mu.Unlock()
	if err := r.HandleControl(ctx, EventToggle); err != nil {
		t.Fatalf("HandleControl(toggle): %v", err)
	}
	if play, _, _, _ := ctrl.counts(); play != 1 {
		t.Errorf("expected toggle to play a paused session, play=%d", play)
	}
}

func TestHandleControl_NoActiveSessionIsGuardedNoOp(t *testing.T) {
	ctx := context.Background()

	r := newTestResolver(t, &fakeRegistry{}, pinned.Fixed(""))

	if err := r.HandleControl(ctx, EventPlay); err != nil {
		t.Errorf("expected guarded no-op without active session, got %v", err)
	}
}

func TestActionTrigger_DispatchesThroughResolver(t *testing.T) {
	ctx := context.Background()

	ctrl := pausedController("s1", "app.a")
	reg := &fakeRegistry{sessions: []session.Controller{ctrl}}

	r := newTestResolver(t, reg, pinned.Fixed("app.a"))
	r.OnActivityPinned(ctx)

	actions := r.Actions(ctx)
	if len(actions) != 1 {
		t.Fatalf("expected one action, got %d", len(actions))
	}
	if err := actions[0].Trigger(ctx); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	play, _, _, _ := ctrl.counts()
	if play != 1 {
		t.Errorf("expected trigger to dispatch play, got %d calls", play)
	}
}

// Example from the interface contract: pinned app owns the second session
func TestResolveExample_SecondSessionMatches(t *testing.T) {
	ctx := context.Background()

	a := playingController("s1", "pkg.a")
	b := pausedController("s2", "pkg.b")
	reg := &fakeRegistry{sessions: []session.Controller{a, b}}

	r := newTestResolver(t, reg, pinned.Fixed("pkg.b"))
	r.OnActivityPinned(ctx)

	got := r.Actions(ctx)
	if len(got) != 1 || got[0].Kind != KindPlay {
		t.Errorf("expected [play] for the paused pinned session, got %v", got)
	}
}
