package tracking

import (
	"gonum.org/v1/gonum/stat"
)

// history is a fixed-size ring of (tick, center) samples.
type history struct {
	ticks []float64
	xs    []float64
	ys    []float64
	size  int
}

func newHistory(size int) *history {
	return &history{size: size}
}

func (h *history) add(tick int64, p Point) {
	h.ticks = append(h.ticks, float64(tick))
	h.xs = append(h.xs, p.X)
	h.ys = append(h.ys, p.Y)
	if n := len(h.ticks); n > h.size {
		drop := n - h.size
		h.ticks = h.ticks[drop:]
		h.xs = h.xs[drop:]
		h.ys = h.ys[drop:]
	}
}

func (h *history) resize(size int) {
	h.size = size
	if n := len(h.ticks); n > size {
		drop := n - size
		h.ticks = h.ticks[drop:]
		h.xs = h.xs[drop:]
		h.ys = h.ys[drop:]
	}
}

func (h *history) reset() {
	h.ticks = h.ticks[:0]
	h.xs = h.xs[:0]
	h.ys = h.ys[:0]
}

// slope fits a least-squares line through the samples and returns the
// per-tick rate of change. For two samples this is the finite difference.
func (h *history) slope() Point {
	if len(h.ticks) < 2 {
		return Point{}
	}
	_, vx := stat.LinearRegression(h.ticks, h.xs, nil, false)
	_, vy := stat.LinearRegression(h.ticks, h.ys, nil, false)
	return Point{X: vx, Y: vy}
}
