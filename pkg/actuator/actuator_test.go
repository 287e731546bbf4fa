package actuator

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

// mockBackend records all commands for testing
type mockBackend struct {
	mu      sync.Mutex
	x, y    int
	moves   []image.Point
	toggles []toggle
	failOn  string
}

type toggle struct {
	in   Input
	down bool
}

func (m *mockBackend) Move(x, y int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x, m.y = x, y
	m.moves = append(m.moves, image.Pt(x, y))
	return nil
}

func (m *mockBackend) Location() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.x, m.y
}

func (m *mockBackend) ToggleKey(key string, down bool) error {
	return m.record(Key(key), down)
}

func (m *mockBackend) ToggleButton(button string, down bool) error {
	return m.record(Button(button), down)
}

func (m *mockBackend) record(in Input, down bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles = append(m.toggles, toggle{in, down})
	if in.Name == m.failOn {
		return errors.New("backend failure")
	}
	return nil
}

func (m *mockBackend) downs(in Input) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.toggles {
		if t.in == in && t.down {
			n++
		}
	}
	return n
}

func (m *mockBackend) ups(in Input) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.toggles {
		if t.in == in && !t.down {
			n++
		}
	}
	return n
}

func newTestActuator(b *mockBackend, maxHold time.Duration) *Actuator {
	return New(b, Options{
		Aimer:       Aimer{Smooth: 0.5, MaxStep: 1000, DeadZone: 1},
		MaxHold:     maxHold,
		CameraLeft:  "left",
		CameraRight: "right",
	})
}

func TestActuator_PressIsIdempotent(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 0)

	lmb := Button("left")
	_ = a.Press(lmb)
	_ = a.Press(lmb)
	if b.downs(lmb) != 1 {
		t.Errorf("downs = %d, want 1", b.downs(lmb))
	}
	if !a.IsHeld(lmb) {
		t.Error("button should be held")
	}

	_ = a.Release(lmb)
	_ = a.Release(lmb)
	if b.ups(lmb) != 1 {
		t.Errorf("ups = %d, want 1", b.ups(lmb))
	}
	if len(a.Held()) != 0 {
		t.Errorf("Held = %v, want none", a.Held())
	}
}

func TestActuator_Tap(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 0)

	if err := a.Tap(Key("e")); err != nil {
		t.Fatal(err)
	}
	if b.downs(Key("e")) != 1 || b.ups(Key("e")) != 1 {
		t.Errorf("tap toggles = %+v", b.toggles)
	}
	if a.IsHeld(Key("e")) {
		t.Error("tapped key still held")
	}
}

func TestActuator_ReleaseAll(t *testing.T) {
	b := &mockBackend{failOn: "w"}
	a := newTestActuator(b, 0)

	_ = a.Press(Button("left"))
	_ = a.Press(Key("shift"))
	_ = a.Rotate(1)
	b.failOn = "shift"

	err := a.ReleaseAll()
	if err == nil {
		t.Error("expected the shift release failure to be reported")
	}
	if held := a.Held(); len(held) != 0 {
		t.Errorf("Held after ReleaseAll = %v", held)
	}
	if a.Camera() != 0 {
		t.Errorf("Camera = %d after ReleaseAll", a.Camera())
	}
	for _, in := range []Input{Button("left"), Key("right")} {
		if b.ups(in) != 1 {
			t.Errorf("%s not released", in)
		}
	}
}

func TestActuator_Rotate(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 0)

	_ = a.Rotate(-1)
	_ = a.Rotate(-5) // same direction
	if b.downs(Key("left")) != 1 {
		t.Errorf("left downs = %d, want 1", b.downs(Key("left")))
	}

	_ = a.Rotate(1)
	if b.ups(Key("left")) != 1 || b.downs(Key("right")) != 1 {
		t.Errorf("direction change toggles = %+v", b.toggles)
	}

	_ = a.Rotate(0)
	if a.IsHeld(Key("right")) || a.Camera() != 0 {
		t.Error("Rotate(0) should stop rotation")
	}
}

func TestActuator_HoldCapTimer(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 30*time.Millisecond)

	lmb := Button("left")
	_ = a.Press(lmb)
	_ = a.Press(Key("w")) // keys are not capped

	deadline := time.Now().Add(2 * time.Second)
	for a.IsHeld(lmb) {
		if time.Now().After(deadline) {
			t.Fatal("hold cap never released the button")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if b.ups(lmb) != 1 {
		t.Errorf("ups = %d, want 1", b.ups(lmb))
	}
	if !a.IsHeld(Key("w")) {
		t.Error("key hold should not be capped")
	}
	if a.CapHits() != 1 {
		t.Errorf("CapHits = %d, want 1", a.CapHits())
	}
}

func TestActuator_EnforceCap(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, time.Hour)
	t0 := time.Unix(1000, 0)
	a.now = func() time.Time { return t0 }

	lmb := Button("left")
	_ = a.Press(lmb)

	if got := a.Enforce(t0.Add(59 * time.Minute)); len(got) != 0 {
		t.Errorf("released early: %v", got)
	}
	got := a.Enforce(t0.Add(time.Hour))
	if len(got) != 1 || got[0] != lmb {
		t.Errorf("Enforce = %v, want [left button]", got)
	}
	if a.IsHeld(lmb) {
		t.Error("button still held after cap")
	}
}

func TestActuator_ReleaseBeforeCapStopsGuard(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 20*time.Millisecond)

	lmb := Button("left")
	_ = a.Press(lmb)
	_ = a.Release(lmb)
	time.Sleep(50 * time.Millisecond)

	if b.ups(lmb) != 1 {
		t.Errorf("ups = %d, want exactly 1", b.ups(lmb))
	}
	if a.CapHits() != 0 {
		t.Errorf("CapHits = %d, want 0", a.CapHits())
	}
}

func TestActuator_LateGuardSparesNewPress(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 40*time.Millisecond)

	lmb := Button("left")
	_ = a.Press(lmb)

	// The first guard fires while a release and re-press hold the lock
	a.mu.Lock()
	time.Sleep(60 * time.Millisecond)
	_ = a.releaseLocked(lmb)
	_ = a.pressLocked(lmb)
	a.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	if !a.IsHeld(lmb) {
		t.Fatal("stale guard released the new press")
	}
	if a.CapHits() != 0 {
		t.Errorf("CapHits = %d, want 0", a.CapHits())
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.IsHeld(lmb) {
		if time.Now().After(deadline) {
			t.Fatal("new press never capped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if a.CapHits() != 1 {
		t.Errorf("CapHits = %d, want 1", a.CapHits())
	}
}

func TestActuator_MoveToward(t *testing.T) {
	b := &mockBackend{}
	a := newTestActuator(b, 0)

	target := image.Pt(100, 0)
	for i := 0; i < 50; i++ {
		_ = a.MoveToward(target)
	}
	if got := a.CursorPosition(); got != target {
		t.Errorf("cursor = %v, want %v", got, target)
	}

	n := len(b.moves)
	_ = a.MoveToward(target)
	if len(b.moves) != n {
		t.Error("no move expected once on target")
	}
}

func TestActuator_PressFailureNotHeld(t *testing.T) {
	b := &mockBackend{failOn: "left"}
	a := newTestActuator(b, 0)

	if err := a.Press(Button("left")); err == nil {
		t.Fatal("expected error")
	}
	if a.IsHeld(Button("left")) {
		t.Error("failed press must not be tracked as held")
	}
}
