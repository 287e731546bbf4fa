// Package tracking keeps a lock on the target across frames, coasts
// through short occlusions and predicts where the target is heading.
package tracking

import (
	"time"

	"github.com/teslashibe/go-hunter/pkg/detection"
)

// State is the tracker lock state.
type State int

const (
	Searching State = iota
	Locked
)

func (s State) String() string {
	switch s {
	case Searching:
		return "SEARCHING"
	case Locked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// Point is a position in ROI pixels.
type Point struct {
	X, Y float64
}

// Result is what one Update reports.
type Result struct {
	State     State
	Position  Point // last observed center
	Previous  Point // center observed before Position; equal to it on acquisition
	Predicted Point // Position + Velocity*lead
	Velocity  Point // pixels per tick
	Size      Point // width and height of the last box
	Grace     int

	Detected bool // this tick carried an accepted detection
	Acquired bool // SEARCHING -> LOCKED on this tick
	Lost     bool // LOCKED -> SEARCHING on this tick
	At       time.Time
}

// Tracker converts a stream of per-tick detections into a lock state.
// It is not safe for concurrent use; the control loop is its only caller.
type Tracker struct {
	config Config

	state    State
	grace    int
	tick     int64
	current  Point
	previous Point
	size     Point
	velocity Point
	history  *history
}

// New creates a tracker in SEARCHING
func New(config Config) *Tracker {
	if config.VelocityWindow < 2 {
		config.VelocityWindow = 2
	}
	return &Tracker{
		config:  config,
		history: newHistory(config.VelocityWindow),
	}
}

// SetConfig applies a new configuration without dropping the lock.
func (t *Tracker) SetConfig(config Config) {
	if config.VelocityWindow < 2 {
		config.VelocityWindow = 2
	}
	if config.VelocityWindow != t.config.VelocityWindow {
		t.history.resize(config.VelocityWindow)
	}
	if t.grace > config.GraceTicks {
		t.grace = config.GraceTicks
	}
	t.config = config
}

// State returns the current lock state.
func (t *Tracker) State() State { return t.state }

// Reset drops any lock.
func (t *Tracker) Reset() {
	t.state = Searching
	t.grace = 0
	t.velocity = Point{}
	t.history.reset()
}

// Update advances the tracker by one tick. det is the best detection of
// the tick or nil; detections below the confidence threshold count as none.
func (t *Tracker) Update(det *detection.Detection, now time.Time) Result {
	t.tick++

	if det != nil && det.Confidence < t.config.Threshold {
		det = nil
	}

	res := Result{At: now}

	switch {
	case det != nil:
		cx, cy := det.Center()
		c := Point{X: cx, Y: cy}
		t.size = Point{X: det.W, Y: det.H}

		if t.state == Searching {
			t.state = Locked
			t.velocity = Point{}
			t.history.reset()
			t.previous = c
			res.Acquired = true
		} else {
			t.previous = t.current
		}
		t.current = c
		t.history.add(t.tick, c)
		if !res.Acquired {
			t.velocity = t.history.slope()
		}
		t.grace = t.config.GraceTicks
		res.Detected = true

	case t.state == Locked:
		t.grace--
		if t.grace <= 0 {
			t.grace = 0
			t.state = Searching
			t.velocity = Point{}
			t.history.reset()
			res.Lost = true
		}
	}

	res.State = t.state
	res.Grace = t.grace
	res.Position = t.current
	res.Previous = t.previous
	res.Size = t.size
	res.Velocity = t.velocity
	res.Predicted = t.predict()
	return res
}

func (t *Tracker) predict() Point {
	if t.state != Locked {
		return t.current
	}
	return Point{
		X: t.current.X + t.velocity.X*t.config.LeadTicks,
		Y: t.current.Y + t.velocity.Y*t.config.LeadTicks,
	}
}
