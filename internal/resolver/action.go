package resolver

import "context"

// ActionKind identifies which transport transition a media action triggers
type ActionKind int

const (
	KindPlay  ActionKind = iota // Action starts or resumes playback
	KindPause                   // Action pauses playback
)

// String returns a human-readable representation of the ActionKind
func (k ActionKind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindPause:
		return "pause"
	default:
		return "unknown"
	}
}

// MediaAction is a single control the overlay can render. Actions are named
// for the transition they trigger: the play action is offered while the
// session is paused, the pause action while it is playing.
type MediaAction struct {
	Kind     ActionKind
	Label    string
	IconName string

	// Trigger dispatches the action through the resolver to the active
	// session's transport controls
	Trigger func(ctx context.Context) error
}

// ControlEvent is an inbound button-press signal from a rendered action
type ControlEvent int

const (
	EventPlay   ControlEvent = iota // Play button pressed
	EventPause                      // Pause button pressed
	EventToggle                     // Toggle based on current playback status
)

// String returns a human-readable representation of the ControlEvent
func (e ControlEvent) String() string {
	switch e {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// ActionListener receives the derived action list whenever it changes
type ActionListener interface {
	// OnMediaActionsChanged is called with the current action list, which
	// always has length 0 or 1
	OnMediaActionsChanged(actions []MediaAction)
}

// listenerFunc adapts a plain function to ActionListener with a stable
// identity, so it can be removed again
type listenerFunc struct {
	id string
	fn func(actions []MediaAction)
}

func (l *listenerFunc) OnMediaActionsChanged(actions []MediaAction) {
	l.fn(actions)
}
