package recorder

import (
	"fmt"
	"time"

	"wordlog/internal/keys"
)

// EventKind tells a key press from a key release.
type EventKind uint8

const (
	KeyDown EventKind = iota + 1
	KeyUp
)

// String returns "down" or "up".
func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	default:
		return "unknown"
	}
}

// Event is a single key transition.
type Event struct {
	Kind EventKind
	Key  keys.Keycode
	At   time.Time
}

// Down returns a key press event stamped with the current time.
func Down(k keys.Keycode) Event {
	return Event{Kind: KeyDown, Key: k, At: time.Now()}
}

// Up returns a key release event stamped with the current time.
func Up(k keys.Keycode) Event {
	return Event{Kind: KeyUp, Key: k, At: time.Now()}
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Key)
}
