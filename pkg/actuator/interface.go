// Package actuator synthesizes input: smoothed cursor movement, camera
// rotation and key/button presses, with a hard cap on button holds.
//
// Backends are split into small interfaces so consumers depend only on
// what they use.
package actuator

// CursorDriver moves and reads the OS cursor.
type CursorDriver interface {
	Move(x, y int) error
	Location() (x, y int)
}

// KeyDriver presses and releases keyboard keys.
type KeyDriver interface {
	ToggleKey(key string, down bool) error
}

// ButtonDriver presses and releases mouse buttons.
type ButtonDriver interface {
	ToggleButton(button string, down bool) error
}

// Backend is the full set of OS input primitives.
type Backend interface {
	CursorDriver
	KeyDriver
	ButtonDriver
}

// Kind distinguishes keyboard keys from mouse buttons.
type Kind int

const (
	KindKey Kind = iota
	KindButton
)

func (k Kind) String() string {
	if k == KindButton {
		return "button"
	}
	return "key"
}

// Input identifies one key or button.
type Input struct {
	Kind Kind
	Name string
}

// Key returns the Input for a keyboard key.
func Key(name string) Input { return Input{Kind: KindKey, Name: name} }

// Button returns the Input for a mouse button.
func Button(name string) Input { return Input{Kind: KindButton, Name: name} }

func (in Input) String() string { return in.Kind.String() + ":" + in.Name }

// Emitter is the subset of the actuator used to replay recorded input.
type Emitter interface {
	Press(in Input) error
	Release(in Input) error
	MoveTo(x, y int) error
}

// Ensure Actuator implements Emitter
var _ Emitter = (*Actuator)(nil)
