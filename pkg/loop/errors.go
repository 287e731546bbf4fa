package loop

import "errors"

var (
	// ErrCommandQueueFull is returned by Enqueue when commands are not
	// being drained.
	ErrCommandQueueFull = errors.New("loop: command queue full")

	// ErrUnknownCommand is returned by ParseCommand.
	ErrUnknownCommand = errors.New("loop: unknown command")
)
