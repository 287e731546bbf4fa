package loop

import (
	"image"
	"time"

	"github.com/teslashibe/go-hunter/pkg/macro"
)

// Position is a point in screen pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Status is the snapshot pushed to the dashboard.
type Status struct {
	Mode       string      `json:"mode"`
	Session    string      `json:"session,omitempty"`
	Phase      string      `json:"phase"`
	Track      string      `json:"track"`
	Target     *Position   `json:"target,omitempty"`
	Aim        *Position   `json:"aim,omitempty"`
	Confidence float64     `json:"confidence"`
	Grace      int         `json:"grace"`
	Held       []string    `json:"held"`
	Ticks      int64       `json:"ticks"`
	Detections int64       `json:"detections"`
	Cycles     int64       `json:"cycles"`
	RuntimeMS  int64       `json:"runtime_ms"`
	Sequence   *macro.Info `json:"sequence,omitempty"`
	At         time.Time   `json:"at"`
}

// Reporter receives dashboard updates. Implementations must not block.
type Reporter interface {
	UpdateStatus(s Status)
	// WantsFrames reports whether anyone is watching the overlay feed.
	WantsFrames() bool
	// SendFrame publishes img with box outlined; box is empty when there
	// is no lock.
	SendFrame(img image.Image, box image.Rectangle)
}
