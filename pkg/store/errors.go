package store

import "errors"

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store: closed")

	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("store: not found")
)
