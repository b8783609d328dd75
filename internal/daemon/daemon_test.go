package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pipwatch/pipwatch/internal/control"
	"github.com/pipwatch/pipwatch/internal/session"
	"github.com/rs/zerolog"
)

// fakeController implements session.Controller for tests
type fakeController struct {
	mu         sync.Mutex
	id         string
	appID      string
	state      session.PlaybackState
	playCalls  int
	pauseCalls int
}

func (c *fakeController) ID() string    { return c.id }
func (c *fakeController) AppID() string { return c.appID }

func (c *fakeController) PlaybackState(ctx context.Context) (*session.PlaybackState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	return &state, nil
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
	return func() {}, nil
}

func (c *fakeController) counts() (play, pause int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playCalls, c.pauseCalls
}

// fakeRegistry implements session.Registry for tests
type fakeRegistry struct {
	mu       sync.Mutex
	sessions []session.Controller
}

func (r *fakeRegistry) ActiveSessions(ctx context.Context) ([]session.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions, nil
}

func (r *fakeRegistry) Watch(fn func()) (func(), error) { return func() {}, nil }
func (r *fakeRegistry) Close() error                    { return nil }

// newTestDaemon creates a daemon with its event loop running and a control
// socket under t.TempDir
func newTestDaemon(t *testing.T, registry session.Registry) *Daemon {
	t.Helper()

	cfg := Config{
		SocketPath:      filepath.Join(t.TempDir(), "control.sock"),
		RefreshInterval: time.Hour, // keep the ticker out of the way
	}
	d := New(cfg, registry, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.eventLoop(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func TestHandleControl_PinnedThenPlay(t *testing.T) {
	ctx := context.Background()

	ctrl := &fakeController{
		id:    "s1",
		appID: "org.example.player",
		state: session.PlaybackState{
			Status:       session.StatusPaused,
			Capabilities: session.CapPlay | session.CapPause,
		},
	}
	d := newTestDaemon(t, &fakeRegistry{sessions: []session.Controller{ctrl}})

	// Compositor hook reports the app as pinned
	err := d.handleControl(ctx, control.Request{ID: "r1", Action: control.ActionPinned, AppID: "org.example.player"})
	if err != nil {
		t.Fatalf("handleControl(pinned): %v", err)
	}

	actions := d.Resolver().Actions(ctx)
	if len(actions) != 1 {
		t.Fatalf("expected one action after pinning, got %d", len(actions))
	}

	// Overlay play button press reaches the session's transport controls
	err = d.handleControl(ctx, control.Request{ID: "r2", Action: control.ActionPlay})
	if err != nil {
		t.Fatalf("handleControl(play): %v", err)
	}
	if play, _ := ctrl.counts(); play != 1 {
		t.Errorf("expected one play call, got %d", play)
	}
}

func TestHandleControl_UnpinnedDropsActiveSession(t *testing.T) {
	ctx := context.Background()

	ctrl := &fakeController{
		id:    "s1",
		appID: "org.example.player",
		state: session.PlaybackState{
			Status:       session.StatusPlaying,
			Capabilities: session.CapPause,
		},
	}
	d := newTestDaemon(t, &fakeRegistry{sessions: []session.Controller{ctrl}})

	err := d.handleControl(ctx, control.Request{Action: control.ActionPinned, AppID: "org.example.player"})
	if err != nil {
		t.Fatalf("handleControl(pinned): %v", err)
	}
	if actions := d.Resolver().Actions(ctx); len(actions) != 1 {
		t.Fatalf("expected one action while pinned, got %d", len(actions))
	}

	err = d.handleControl(ctx, control.Request{Action: control.ActionUnpinned})
	if err != nil {
		t.Fatalf("handleControl(unpinned): %v", err)
	}
	if actions := d.Resolver().Actions(ctx); len(actions) != 0 {
		t.Errorf("expected no actions after unpinning, got %d", len(actions))
	}

	// Control events after unpinning are guarded no-ops
	err = d.handleControl(ctx, control.Request{Action: control.ActionPause})
	if err != nil {
		t.Errorf("expected guarded no-op after unpinning, got %v", err)
	}
	if _, pause := ctrl.counts(); pause != 0 {
		t.Errorf("expected no pause calls after unpinning, got %d", pause)
	}
}

func TestHandleControl_UnknownAction(t *testing.T) {
	d := newTestDaemon(t, &fakeRegistry{})

	err := d.handleControl(context.Background(), control.Request{Action: "seek"})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestHandleControl_PinnedRequiresAppID(t *testing.T) {
	d := newTestDaemon(t, &fakeRegistry{})

	err := d.handleControl(context.Background(), control.Request{Action: control.ActionPinned})
	if err == nil {
		t.Fatal("expected error for pinned event without app_id")
	}
}
