package daemon

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	announcerBusName = "org.pipwatch.Resolver1"
	announcerPath    = dbus.ObjectPath("/org/pipwatch/Resolver")
	announcerIface   = "org.pipwatch.Resolver1"
)

// Announcer publishes the derived action list on the session bus so the
// overlay process can render it. Emits ActionsChanged(as) on every change
// and answers CurrentActions() for late joiners.
type Announcer struct {
	conn   *dbus.Conn
	logger zerolog.Logger

	mu      sync.Mutex
	current []string
}

// NewAnnouncer claims the pipwatch bus name and exports the resolver object
func NewAnnouncer(logger zerolog.Logger) (*Announcer, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	a := &Announcer{
		conn:   conn,
		logger: logger.With().Str("component", "announcer").Logger(),
	}

	reply, err := conn.RequestName(announcerBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("bus name %s already taken (another daemon running?)", announcerBusName)
	}

	if err := conn.Export(a, announcerPath, announcerIface); err != nil {
		return nil, fmt.Errorf("failed to export resolver object: %w", err)
	}

	a.logger.Info().Str("bus_name", announcerBusName).Msg("Announcer registered")
	return a, nil
}

// Broadcast records kinds as the current action list and emits the change
// signal on the bus
func (a *Announcer) Broadcast(kinds []string) {
	a.mu.Lock()
	a.current = kinds
	a.mu.Unlock()

	err := a.conn.Emit(announcerPath, announcerIface+".ActionsChanged", kinds)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to emit ActionsChanged")
	}
}

// CurrentActions returns the last broadcast action list. Exported on the bus.
func (a *Announcer) CurrentActions() ([]string, *dbus.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, nil
}

// Close releases the bus name and connection
func (a *Announcer) Close() error {
	if _, err := a.conn.ReleaseName(announcerBusName); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to release bus name")
	}
	return a.conn.Close()
}
