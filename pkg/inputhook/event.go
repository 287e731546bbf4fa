// Package inputhook listens to global keyboard and mouse input and fans
// each event out to subscribers (hotkeys, the macro recorder).
package inputhook

import "time"

// Kind is the type of a raw input event.
type Kind int

const (
	KeyDown Kind = iota + 1
	KeyUp
	ButtonDown
	ButtonUp
	Move
)

func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case ButtonDown:
		return "button_down"
	case ButtonUp:
		return "button_up"
	case Move:
		return "move"
	default:
		return "unknown"
	}
}

// Event is one raw input event with normalized names.
type Event struct {
	Kind   Kind
	Key    string // lower-case key name for key events
	Button string // left, right or middle for button events
	X, Y   int
	At     time.Time
}
