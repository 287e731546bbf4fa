// Package capture grabs the region of interest from the screen.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/teslashibe/go-hunter/internal/config"
)

// ErrNoDisplay is returned when the configured display does not exist.
var ErrNoDisplay = errors.New("capture: display not found")

// Frame is one captured ROI image.
type Frame struct {
	Image  *image.RGBA
	Origin image.Point // ROI top-left in screen coordinates
	At     time.Time
}

// Width and Height of the frame in pixels.
func (f Frame) Width() int  { return f.Image.Bounds().Dx() }
func (f Frame) Height() int { return f.Image.Bounds().Dy() }

// ToScreen converts ROI pixel coordinates to screen coordinates.
func (f Frame) ToScreen(x, y float64) image.Point {
	return image.Pt(f.Origin.X+int(math.Round(x)), f.Origin.Y+int(math.Round(y)))
}

// Source produces frames.
type Source interface {
	Capture(ctx context.Context, roi config.Fraction) (Frame, error)
}

// ROI converts a fractional region into an absolute rectangle inside display.
func ROI(display image.Rectangle, f config.Fraction) image.Rectangle {
	w, h := float64(display.Dx()), float64(display.Dy())
	x0 := display.Min.X + int(math.Round(f.Left*w))
	y0 := display.Min.Y + int(math.Round(f.Top*h))
	x1 := x0 + int(math.Round(f.Width*w))
	y1 := y0 + int(math.Round(f.Height*h))
	return image.Rect(x0, y0, x1, y1).Intersect(display)
}

// Screen captures from a physical display.
type Screen struct {
	Display int
	now     func() time.Time
}

// NewScreen returns a Screen for the given display index.
func NewScreen(display int) *Screen {
	return &Screen{Display: display, now: time.Now}
}

// Bounds returns the display rectangle.
func (s *Screen) Bounds() (image.Rectangle, error) {
	if s.Display < 0 || s.Display >= screenshot.NumActiveDisplays() {
		return image.Rectangle{}, fmt.Errorf("%w: %d", ErrNoDisplay, s.Display)
	}
	return screenshot.GetDisplayBounds(s.Display), nil
}

// Capture grabs the ROI. Display bounds are re-read every call so a
// resolution change takes effect on the next tick.
func (s *Screen) Capture(ctx context.Context, roi config.Fraction) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	display, err := s.Bounds()
	if err != nil {
		return Frame{}, err
	}
	rect := ROI(display, roi)
	if rect.Empty() {
		return Frame{}, fmt.Errorf("capture: empty region %v", rect)
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return Frame{}, fmt.Errorf("capture %v: %w", rect, err)
	}
	return Frame{Image: img, Origin: rect.Min, At: s.now()}, nil
}
