package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisRootIface  = "org.mpris.MediaPlayer2"
	playerIface     = "org.mpris.MediaPlayer2.Player"
	propsIface      = "org.freedesktop.DBus.Properties"
)

// MPRISRegistry exposes the session bus's MPRIS players as a Registry.
// Each org.mpris.MediaPlayer2.* bus name is one media session.
type MPRISRegistry struct {
	conn   *dbus.Conn
	logger zerolog.Logger
}

// NewMPRISRegistry connects to the D-Bus session bus
func NewMPRISRegistry(logger zerolog.Logger) (*MPRISRegistry, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &MPRISRegistry{
		conn:   conn,
		logger: logger.With().Str("component", "mpris").Logger(),
	}, nil
}

// ActiveSessions lists the MPRIS players currently on the bus, in bus order
func (r *MPRISRegistry) ActiveSessions(ctx context.Context) ([]Controller, error) {
	var names []string
	err := r.conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var sessions []Controller
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		ctrl, err := r.newController(ctx, name)
		if err != nil {
			// Player may have vanished between ListNames and the lookup
			r.logger.Debug().Err(err).Str("bus_name", name).Msg("Skipping player")
			continue
		}
		sessions = append(sessions, ctrl)
	}
	return sessions, nil
}

// Watch subscribes fn to MPRIS player appearance/disappearance on the bus
func (r *MPRISRegistry) Watch(fn func()) (func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	}
	if err := r.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to add match rule: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	r.conn.Signal(ch)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				if sig == nil || sig.Name != "org.freedesktop.DBus.NameOwnerChanged" {
					continue
				}
				if len(sig.Body) < 1 {
					continue
				}
				name, _ := sig.Body[0].(string)
				if strings.HasPrefix(name, mprisPrefix) {
					fn()
				}
			}
		}
	}()

	stop := func() {
		close(done)
		r.conn.RemoveSignal(ch)
		if err := r.conn.RemoveMatchSignal(opts...); err != nil {
			r.logger.Debug().Err(err).Msg("Failed to remove match rule")
		}
	}
	return stop, nil
}

// Close releases the bus connection
func (r *MPRISRegistry) Close() error {
	return r.conn.Close()
}

// newController resolves a bus name into a controller handle.
// The session's identity is its current unique bus owner, so a player that
// restarts under the same well-known name yields a distinct handle.
func (r *MPRISRegistry) newController(ctx context.Context, busName string) (*mprisController, error) {
	var owner string
	err := r.conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.GetNameOwner", 0, busName).Store(&owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner of %s: %w", busName, err)
	}

	return &mprisController{
		conn:    r.conn,
		busName: busName,
		owner:   owner,
		appID:   r.resolveAppID(busName),
		logger:  r.logger,
	}, nil
}

// resolveAppID determines the owning application's identity for a player.
// Prefers the DesktopEntry property, which matches the compositor app id
// for well-behaved players; falls back to the bus name suffix.
func (r *MPRISRegistry) resolveAppID(busName string) string {
	obj := r.conn.Object(busName, mprisObjectPath)
	if v, err := obj.GetProperty(mprisRootIface + ".DesktopEntry"); err == nil {
		if entry, ok := v.Value().(string); ok && entry != "" {
			return entry
		}
	}

	return appIDFromBusName(busName)
}

// appIDFromBusName derives an app identity from an MPRIS bus name when the
// player does not publish a DesktopEntry
func appIDFromBusName(busName string) string {
	suffix := strings.TrimPrefix(busName, mprisPrefix)
	// Multi-instance players append .instance<N> or .instance_<pid>
	if i := strings.Index(suffix, ".instance"); i >= 0 {
		suffix = suffix[:i]
	}
	return suffix
}

// mprisController is a Controller backed by one MPRIS player on the bus
type mprisController struct {
	conn    *dbus.Conn
	busName string
	owner   string // unique bus name, used as identity
	appID   string
	logger  zerolog.Logger
}

func (c *mprisController) ID() string {
	return c.owner
}

func (c *mprisController) AppID() string {
	return c.appID
}

// PlaybackState queries the player's status and transport capabilities
func (c *mprisController) PlaybackState(ctx context.Context) (*PlaybackState, error) {
	obj := c.conn.Object(c.busName, mprisObjectPath)

	var statusVar dbus.Variant
	err := obj.CallWithContext(ctx, propsIface+".Get", 0,
		playerIface, "PlaybackStatus").Store(&statusVar)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback status: %w", err)
	}
	status, ok := statusVar.Value().(string)
	if !ok {
		return nil, fmt.Errorf("unexpected playback status type %T", statusVar.Value())
	}

	state := &PlaybackState{}
	switch status {
	case "Playing":
		state.Status = StatusPlaying
	case "Paused":
		state.Status = StatusPaused
	default:
		state.Status = StatusStopped
	}

	if c.boolProp(ctx, obj, "CanPlay") {
		state.Capabilities |= CapPlay
	}
	if c.boolProp(ctx, obj, "CanPause") {
		state.Capabilities |= CapPause
	}
	return state, nil
}

// boolProp reads a boolean player property, treating errors as false
func (c *mprisController) boolProp(ctx context.Context, obj dbus.BusObject, prop string) bool {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propsIface+".Get", 0, playerIface, prop).Store(&v)
	if err != nil {
		c.logger.Debug().Err(err).Str("property", prop).Msg("Property query failed")
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func (c *mprisController) Play(ctx context.Context) error {
	obj := c.conn.Object(c.busName, mprisObjectPath)
	if call := obj.CallWithContext(ctx, playerIface+".Play", 0); call.Err != nil {
		return fmt.Errorf("failed to send play to %s: %w", c.busName, call.Err)
	}
	return nil
}

func (c *mprisController) Pause(ctx context.Context) error {
	obj := c.conn.Object(c.busName, mprisObjectPath)
	if call := obj.CallWithContext(ctx, playerIface+".Pause", 0); call.Err != nil {
		return fmt.Errorf("failed to send pause to %s: %w", c.busName, call.Err)
	}
	return nil
}

// Watch subscribes fn to the player's PropertiesChanged signals
func (c *mprisController) Watch(fn func()) (func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchSender(c.busName),
		dbus.WithMatchObjectPath(mprisObjectPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to add match rule: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				// The channel sees every matched signal on the
				// connection; keep only this player's.
				if sig == nil || sig.Sender != c.owner {
					continue
				}
				if sig.Name != propsIface+".PropertiesChanged" {
					continue
				}
				fn()
			}
		}
	}()

	stop := func() {
		close(done)
		c.conn.RemoveSignal(ch)
		if err := c.conn.RemoveMatchSignal(opts...); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to remove match rule")
		}
	}
	return stop, nil
}
