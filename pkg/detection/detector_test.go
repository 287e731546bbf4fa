package detection

import (
	"errors"
	"testing"
)

func TestDetection_Center(t *testing.T) {
	tests := []struct {
		name    string
		det     Detection
		expectX float64
		expectY float64
	}{
		{
			name:    "origin box",
			det:     Detection{X: 0, Y: 0, W: 40, H: 20},
			expectX: 20,
			expectY: 10,
		},
		{
			name:    "offset box",
			det:     Detection{X: 100, Y: 50, W: 60, H: 30},
			expectX: 130,
			expectY: 65,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.det.Center()
			if x != tc.expectX {
				t.Errorf("Center X: got %.2f, want %.2f", x, tc.expectX)
			}
			if y != tc.expectY {
				t.Errorf("Center Y: got %.2f, want %.2f", y, tc.expectY)
			}
		})
	}
}

func TestDetection_AreaAndRect(t *testing.T) {
	d := Detection{X: 10, Y: 20, W: 50, H: 30}
	if d.Area() != 1500 {
		t.Errorf("Area: got %.1f, want 1500", d.Area())
	}
	r := d.Rect()
	if r.Min.X != 10 || r.Min.Y != 20 || r.Dx() != 50 || r.Dy() != 30 {
		t.Errorf("Rect: got %v", r)
	}
}

func TestFilter_Accept(t *testing.T) {
	f := Filter{MinWidth: 40, MinHeight: 25, MaxHeight: 200, MaxAspect: 2.5}

	tests := []struct {
		name string
		det  Detection
		want bool
	}{
		{"plausible", Detection{W: 80, H: 60}, true},
		{"too narrow", Detection{W: 30, H: 60}, false},
		{"too short", Detection{W: 80, H: 20}, false},
		{"too tall", Detection{W: 120, H: 220}, false},
		{"tree shaped", Detection{W: 50, H: 150}, false},
		{"aspect at limit", Detection{W: 50, H: 125}, true},
		{"degenerate", Detection{W: 0, H: 40}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Accept(tc.det); got != tc.want {
				t.Errorf("Accept(%+v) = %v, want %v", tc.det, got, tc.want)
			}
		})
	}

	if !(Filter{}).Accept(Detection{W: 1, H: 100}) {
		t.Error("zero filter should accept any non-empty box")
	}
}

func TestBest(t *testing.T) {
	f := Filter{MinWidth: 40, MinHeight: 25}

	dets := []Detection{
		{X: 0, W: 50, H: 40, Confidence: 0.6},
		{X: 1, W: 50, H: 40, Confidence: 0.9},
		{X: 2, W: 10, H: 10, Confidence: 0.99}, // rejected by filter
		{X: 3, W: 50, H: 40, Confidence: 0.3},  // below threshold
	}

	best := Best(dets, 0.5, f)
	if best == nil {
		t.Fatal("expected a detection")
	}
	if best.X != 1 {
		t.Errorf("picked X=%.0f, want the 0.9 detection", best.X)
	}

	if Best(dets, 0.95, f) != nil {
		t.Error("nothing should pass a 0.95 threshold once the small box is filtered")
	}
	if Best(nil, 0.1, f) != nil {
		t.Error("empty input should give nil")
	}

	// Returned pointer must not alias the input slice
	best.X = 99
	if dets[1].X != 1 {
		t.Error("Best returned a pointer into the input slice")
	}
}

func TestNewYOLO_MissingModel(t *testing.T) {
	_, err := NewYOLO(Config{ModelPath: "/nonexistent/target.onnx", InputSize: 640})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("NewYOLO error = %v, want ErrModelNotFound", err)
	}
}

func TestOpen_FallsBackToDisabled(t *testing.T) {
	det, err := Open(Config{ModelPath: "/nonexistent/target.onnx", InputSize: 640})
	if err == nil {
		t.Error("expected the load error to be reported")
	}
	if _, ok := det.(Disabled); !ok {
		t.Fatalf("Open returned %T, want Disabled", det)
	}
	dets, err := det.Detect(nil)
	if err != nil || len(dets) != 0 {
		t.Errorf("Disabled.Detect = %v, %v", dets, err)
	}
}
