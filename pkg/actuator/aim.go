package actuator

import (
	"image"
	"math"
	"time"
)

// Aimer computes the next cursor position on an exponential approach to
// the target. Far targets close a smaller fraction of the gap per tick and
// near targets a larger one; each step is capped by MaxStep.
type Aimer struct {
	Smooth   float64 // fraction of the remaining distance closed per tick (0-1]
	MaxStep  float64 // maximum pixels per tick
	DeadZone float64 // don't move if the error is smaller than this (pixels)
	FarDist  float64 // distance at which the gain reaches Smooth
}

// NewAimer builds an Aimer from a smoothing factor, a speed cap in pixels
// per second and the control loop period.
func NewAimer(smooth, maxSpeedPx float64, tick time.Duration) Aimer {
	return Aimer{
		Smooth:   smooth,
		MaxStep:  maxSpeedPx * tick.Seconds(),
		DeadZone: 1,
		FarDist:  300,
	}
}

// gain grows from Smooth at FarDist to 1.5*Smooth at zero distance.
func (a Aimer) gain(dist float64) float64 {
	near := 1.0
	if a.FarDist > 0 {
		near = 1 - math.Min(dist/a.FarDist, 1)
	}
	return math.Min(a.Smooth*(1+0.5*near), 1)
}

// Step returns the next cursor position and whether it differs from cur.
func (a Aimer) Step(cur, target image.Point) (image.Point, bool) {
	dx := float64(target.X - cur.X)
	dy := float64(target.Y - cur.Y)
	dist := math.Hypot(dx, dy)

	if dist < a.DeadZone || dist == 0 {
		return cur, false
	}

	g := a.gain(dist)
	sx, sy := dx*g, dy*g
	step := dist * g

	// Rate limit the output
	if a.MaxStep > 0 && step > a.MaxStep {
		scale := a.MaxStep / step
		sx, sy = sx*scale, sy*scale
		step = a.MaxStep
	}

	// Minimum one pixel so the cursor never stalls short of the target
	if step < 1 {
		sx, sy = dx/dist, dy/dist
	}

	next := image.Pt(cur.X+int(math.Round(sx)), cur.Y+int(math.Round(sy)))
	if next == cur {
		// Rounding swallowed a diagonal sub-pixel step; move on the major axis
		if math.Abs(dx) >= math.Abs(dy) {
			next.X += int(math.Copysign(1, dx))
		} else {
			next.Y += int(math.Copysign(1, dy))
		}
	}
	return next, true
}
