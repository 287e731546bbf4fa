// Package detection locates the target in captured frames using a
// pretrained object detection model.
package detection

import (
	"image"
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
)

// Detection is one candidate bounding box in ROI pixel coordinates.
type Detection struct {
	X, Y       float64   // Top-left corner (pixels)
	W, H       float64   // Width and height (pixels)
	Confidence float64   // Detection confidence (0-1)
	At         time.Time // Capture time of the frame it came from
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Rect returns the box as an integer rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(int(d.X), int(d.Y), int(d.X+d.W), int(d.Y+d.H))
}

// Detector is the interface for detection backends
type Detector interface {
	// Detect finds candidate targets in the frame
	Detect(img image.Image) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence kept by the backend
	NMSThresh        float64 // Non-maximum suppression IoU threshold
	InputSize        int     // Square model input size
	ClassID          int     // Class index of the target in the model
}

// ConfigFrom extracts detector settings from the runtime config.
func ConfigFrom(c config.DetectionConfig) Config {
	return Config{
		ModelPath:        c.ModelPath,
		ConfidenceThresh: c.Threshold,
		NMSThresh:        c.NMSThreshold,
		InputSize:        c.InputSize,
		ClassID:          c.ClassID,
	}
}

// Filter rejects boxes whose geometry cannot be the target.
// A zero bound disables that check.
type Filter struct {
	MinWidth  float64
	MinHeight float64
	MaxHeight float64
	MaxAspect float64 // height / width
}

// FilterFrom extracts the plausibility filter from the runtime config.
func FilterFrom(c config.DetectionConfig) Filter {
	return Filter{
		MinWidth:  c.MinWidth,
		MinHeight: c.MinHeight,
		MaxHeight: c.MaxHeight,
		MaxAspect: c.MaxAspect,
	}
}

// Accept reports whether d passes the filter.
func (f Filter) Accept(d Detection) bool {
	if d.W <= 0 || d.H <= 0 {
		return false
	}
	if f.MinWidth > 0 && d.W < f.MinWidth {
		return false
	}
	if f.MinHeight > 0 && d.H < f.MinHeight {
		return false
	}
	if f.MaxHeight > 0 && d.H > f.MaxHeight {
		return false
	}
	if f.MaxAspect > 0 && d.H/d.W > f.MaxAspect {
		return false
	}
	return true
}

// Best returns the highest-confidence detection that meets threshold and
// passes the filter, or nil.
func Best(dets []Detection, threshold float64, f Filter) *Detection {
	var best *Detection
	for i := range dets {
		d := dets[i]
		if d.Confidence < threshold || !f.Accept(d) {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = &d
		}
	}
	return best
}
