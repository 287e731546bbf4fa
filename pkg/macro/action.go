// Package macro records raw user input with relative timestamps and
// replays it with the same timing.
package macro

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-hunter/pkg/actuator"
)

// Kind is the type of a recorded action.
type Kind string

const (
	KindMove       Kind = "move"
	KindButtonDown Kind = "button_down"
	KindButtonUp   Kind = "button_up"
	KindKeyDown    Kind = "key_down"
	KindKeyUp      Kind = "key_up"
)

// Action is one recorded input event.
type Action struct {
	Kind   Kind          `json:"kind"`
	Offset time.Duration `json:"offset"` // since recording start
	X      int           `json:"x,omitempty"`
	Y      int           `json:"y,omitempty"`
	Button string        `json:"button,omitempty"` // left, right, middle
	Key    string        `json:"key,omitempty"`
}

// Input returns the key or button the action presses or releases, and
// whether it presses it. ok is false for moves.
func (a Action) Input() (in actuator.Input, down bool, ok bool) {
	switch a.Kind {
	case KindButtonDown:
		return actuator.Button(a.Button), true, true
	case KindButtonUp:
		return actuator.Button(a.Button), false, true
	case KindKeyDown:
		return actuator.Key(a.Key), true, true
	case KindKeyUp:
		return actuator.Key(a.Key), false, true
	default:
		return actuator.Input{}, false, false
	}
}

// Validate checks the kind and payload.
func (a Action) Validate() error {
	switch a.Kind {
	case KindMove:
		return nil
	case KindButtonDown, KindButtonUp:
		switch a.Button {
		case "left", "right", "middle":
			return nil
		}
		return fmt.Errorf("%w: button %q", ErrInvalidAction, a.Button)
	case KindKeyDown, KindKeyUp:
		if a.Key == "" {
			return fmt.Errorf("%w: %s without key", ErrInvalidAction, a.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidAction, a.Kind)
	}
}

// Sequence is an ordered, immutable list of recorded actions.
type Sequence struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	RecordedAt time.Time     `json:"recorded_at"`
	Duration   time.Duration `json:"duration"` // recording length, >= last offset
	Actions    []Action      `json:"actions"`
}

// Validate rejects empty sequences, unknown actions and decreasing offsets.
func (s *Sequence) Validate() error {
	if s == nil || len(s.Actions) == 0 {
		return ErrEmptySequence
	}
	inputs := 0
	var prev time.Duration
	for i, a := range s.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		if a.Offset < 0 {
			return fmt.Errorf("action %d: %w: negative offset", i, ErrNonMonotonic)
		}
		if a.Offset < prev {
			return fmt.Errorf("action %d: %w: %v after %v", i, ErrNonMonotonic, a.Offset, prev)
		}
		prev = a.Offset
		if a.Kind != KindMove {
			inputs++
		}
	}
	if inputs == 0 {
		return ErrEmptySequence
	}
	return nil
}

// Length is the playback length: Duration, or the last offset when
// Duration is unset.
func (s *Sequence) Length() time.Duration {
	if len(s.Actions) == 0 {
		return s.Duration
	}
	last := s.Actions[len(s.Actions)-1].Offset
	if s.Duration > last {
		return s.Duration
	}
	return last
}

// Info summarizes a sequence for display.
type Info struct {
	Exists      bool      `json:"exists"`
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	ActionCount int       `json:"action_count"`
	Duration    float64   `json:"duration_s"`
	RecordedAt  time.Time `json:"recorded_at,omitempty"`
}

// Describe returns the Info for s; a nil sequence reports Exists=false.
func Describe(s *Sequence) Info {
	if s == nil {
		return Info{}
	}
	return Info{
		Exists:      true,
		ID:          s.ID.String(),
		Name:        s.Name,
		ActionCount: len(s.Actions),
		Duration:    s.Length().Seconds(),
		RecordedAt:  s.RecordedAt,
	}
}
