package session

import "context"

// Status represents the playback status of a media session
type Status int

const (
	StatusStopped Status = iota // No track loaded or playback stopped
	StatusPlaying               // Session is actively playing
	StatusPaused                // Session is paused
)

// String returns a human-readable representation of the Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Capabilities is a bitmask of the transport commands a session advertises
type Capabilities uint32

const (
	CapPlay  Capabilities = 1 << iota // Session accepts a Play command
	CapPause                          // Session accepts a Pause command
)

// Has reports whether all capabilities in c are advertised
func (caps Capabilities) Has(c Capabilities) bool {
	return caps&c == c
}

// PlaybackState is a session's current status plus its advertised capabilities
type PlaybackState struct {
	Status       Status
	Capabilities Capabilities
}

// Playing reports whether the session is actively playing
func (p PlaybackState) Playing() bool {
	return p.Status == StatusPlaying
}

// Controller is a handle to a single media session's state and transport controls
type Controller interface {
	// ID uniquely identifies this session instance. Two handles for the
	// same underlying session return the same ID.
	ID() string

	// AppID returns the identity of the application that owns the session,
	// comparable against the compositor's app id for a window.
	AppID() string

	// PlaybackState returns the session's current playback state, or nil
	// if the session has not published one yet.
	PlaybackState(ctx context.Context) (*PlaybackState, error)

	// Play issues the play transport command
	Play(ctx context.Context) error

	// Pause issues the pause transport command
	Pause(ctx context.Context) error

	// Watch subscribes fn to playback-state change notifications.
	// The returned stop function cancels the subscription.
	Watch(fn func()) (stop func(), err error)
}

// Registry provides access to the platform's active media sessions
type Registry interface {
	// ActiveSessions returns the currently active sessions in platform order
	ActiveSessions(ctx context.Context) ([]Controller, error)

	// Watch subscribes fn to active-sessions-changed notifications.
	// The returned stop function cancels the subscription.
	Watch(fn func()) (stop func(), err error)

	// Close releases the registry's platform resources
	Close() error
}
