package detection

import (
	"image"

	"github.com/teslashibe/go-hunter/internal/log"
)

// Disabled is a detector that never finds anything. It stands in for the
// model when the model file is missing or unreadable.
type Disabled struct{}

// Detect always returns no detections.
func (Disabled) Detect(image.Image) ([]Detection, error) { return nil, nil }

// Close is a no-op.
func (Disabled) Close() error { return nil }

// Open loads the configured model. If it cannot be loaded, detection is
// disabled for the session: a warning is logged and Disabled is returned
// together with the load error.
func Open(cfg Config) (Detector, error) {
	det, err := NewYOLO(cfg)
	if err != nil {
		log.Warn("detection disabled", "model", cfg.ModelPath, "error", err)
		return Disabled{}, err
	}
	log.Info("detection model loaded", "model", cfg.ModelPath, "input", cfg.InputSize)
	return det, nil
}
