package macro

import "errors"

var (
	// ErrEmptySequence is returned for a sequence with no input actions.
	ErrEmptySequence = errors.New("macro: sequence has no actions")

	// ErrNonMonotonic is returned when action offsets decrease.
	ErrNonMonotonic = errors.New("macro: action offsets must be non-decreasing")

	// ErrInvalidAction is returned for an unknown kind or a missing payload.
	ErrInvalidAction = errors.New("macro: invalid action")

	// ErrAlreadyPlaying is returned when Play is called during playback.
	ErrAlreadyPlaying = errors.New("macro: already playing")

	// ErrNotRecording is returned by Stop when no recording is active.
	ErrNotRecording = errors.New("macro: not recording")

	// ErrAlreadyRecording is returned by Start during a recording.
	ErrAlreadyRecording = errors.New("macro: already recording")
)
