package detection

import "errors"

var (
	// ErrModelNotFound is returned when the model file does not exist.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrModelLoad is returned when the model file cannot be parsed.
	ErrModelLoad = errors.New("detection: failed to load model")

	// ErrEmptyFrame is returned for a frame with no pixels.
	ErrEmptyFrame = errors.New("detection: empty frame")
)
