package actuator

import (
	"errors"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/log"
)

// Options configures an Actuator.
type Options struct {
	Aimer        Aimer
	MaxHold      time.Duration // cap on a single button hold; 0 disables
	CameraLeft   string
	CameraRight  string
	ErrorLogRate time.Duration
}

// Actuator owns every synthetic input the process emits. It tracks held
// inputs so they can always be released, and releases any button held for
// longer than MaxHold regardless of who pressed it.
//
// Actuator is safe for concurrent use: the control loop and the macro
// player may emit through it at the same time.
type Actuator struct {
	backend Backend
	lg      *slog.Logger
	errs    *log.Limiter

	mu      sync.Mutex
	opts    Options
	held    map[Input]time.Time
	guards  map[Input]guard
	gen     uint64
	camera  int
	now     func() time.Time
	capHits uint64
	onError func(error)
}

// guard is the hold-cap timer of one press. gen tells a timer that fires
// late apart from the guard of a newer press of the same input.
type guard struct {
	timer *time.Timer
	gen   uint64
}

// New creates an Actuator over backend.
func New(backend Backend, opts Options) *Actuator {
	if opts.ErrorLogRate == 0 {
		opts.ErrorLogRate = 5 * time.Second
	}
	return &Actuator{
		backend: backend,
		lg:      log.With("component", "actuator"),
		errs:    log.NewLimiter(opts.ErrorLogRate),
		opts:    opts,
		held:    make(map[Input]time.Time),
		guards:  make(map[Input]guard),
		now:     time.Now,
	}
}

// SetOptions applies new smoothing, hold cap and camera keys. Inputs
// already held keep their original press time.
func (a *Actuator) SetOptions(opts Options) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if opts.ErrorLogRate == 0 {
		opts.ErrorLogRate = a.opts.ErrorLogRate
	}
	a.opts = opts
}

// OnError registers a callback for every backend failure (metrics hook).
func (a *Actuator) OnError(fn func(error)) {
	a.mu.Lock()
	a.onError = fn
	a.mu.Unlock()
}

func (a *Actuator) fail(op string, in Input, err error) error {
	a.errs.Warn(a.lg, op, "actuation failed", "op", op, "input", in.String(), "error", err)
	if a.onError != nil {
		a.onError(err)
	}
	return err
}

// CursorPosition returns the current cursor position in screen coordinates.
func (a *Actuator) CursorPosition() image.Point {
	x, y := a.backend.Location()
	return image.Pt(x, y)
}

// MoveTo places the cursor at (x, y) without smoothing.
func (a *Actuator) MoveTo(x, y int) error {
	if err := a.backend.Move(x, y); err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.fail("move", Input{}, err)
	}
	return nil
}

// MoveToward moves the cursor one smoothed step toward target.
func (a *Actuator) MoveToward(target image.Point) error {
	a.mu.Lock()
	aimer := a.opts.Aimer
	a.mu.Unlock()

	next, ok := aimer.Step(a.CursorPosition(), target)
	if !ok {
		return nil
	}
	return a.MoveTo(next.X, next.Y)
}

// Press holds in down. Pressing an input that is already held is a no-op.
func (a *Actuator) Press(in Input) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pressLocked(in)
}

func (a *Actuator) pressLocked(in Input) error {
	if _, ok := a.held[in]; ok {
		return nil
	}
	if err := a.toggle(in, true); err != nil {
		return a.fail("press", in, err)
	}
	a.held[in] = a.now()

	if in.Kind == KindButton && a.opts.MaxHold > 0 {
		a.gen++
		gen := a.gen
		a.guards[in] = guard{
			timer: time.AfterFunc(a.opts.MaxHold, func() { a.expire(in, gen) }),
			gen:   gen,
		}
	}
	return nil
}

// Release lets go of in. Releasing an input that is not held is a no-op.
func (a *Actuator) Release(in Input) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releaseLocked(in)
}

func (a *Actuator) releaseLocked(in Input) error {
	if _, ok := a.held[in]; !ok {
		return nil
	}
	if g, ok := a.guards[in]; ok {
		g.timer.Stop()
		delete(a.guards, in)
	}
	delete(a.held, in)
	if err := a.toggle(in, false); err != nil {
		return a.fail("release", in, err)
	}
	return nil
}

// Tap presses and immediately releases in.
func (a *Actuator) Tap(in Input) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.pressLocked(in); err != nil {
		return err
	}
	return a.releaseLocked(in)
}

// Rotate holds the camera key for dir (-1 left, +1 right) and releases the
// other one. dir 0 stops rotation.
func (a *Actuator) Rotate(dir int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case dir < 0:
		dir = -1
	case dir > 0:
		dir = 1
	}
	if dir == a.camera {
		return nil
	}

	left, right := Key(a.opts.CameraLeft), Key(a.opts.CameraRight)
	var errs []error
	if a.camera != 0 {
		prev := left
		if a.camera > 0 {
			prev = right
		}
		errs = append(errs, a.releaseLocked(prev))
	}
	a.camera = 0
	if dir != 0 {
		next := left
		if dir > 0 {
			next = right
		}
		if err := a.pressLocked(next); err != nil {
			errs = append(errs, err)
		} else {
			a.camera = dir
		}
	}
	return errors.Join(errs...)
}

// Camera returns the current rotation direction.
func (a *Actuator) Camera() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.camera
}

// ReleaseAll releases every held input. Every release is attempted even if
// some fail.
func (a *Actuator) ReleaseAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, in := range a.heldLocked() {
		errs = append(errs, a.releaseLocked(in))
	}
	a.camera = 0
	return errors.Join(errs...)
}

// Enforce releases any button held for MaxHold or longer as of now and
// returns what it released. The per-press timer normally fires first;
// Enforce covers timer latency on a loaded machine.
func (a *Actuator) Enforce(now time.Time) []Input {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.opts.MaxHold <= 0 {
		return nil
	}
	var released []Input
	for _, in := range a.heldLocked() {
		if in.Kind != KindButton {
			continue
		}
		if now.Sub(a.held[in]) >= a.opts.MaxHold {
			a.capHits++
			_ = a.releaseLocked(in)
			released = append(released, in)
		}
	}
	if len(released) > 0 {
		a.lg.Warn("hold cap reached, released", "inputs", released, "cap", a.opts.MaxHold)
	}
	return released
}

func (a *Actuator) expire(in Input, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.guards[in]; !ok || g.gen != gen {
		return
	}
	a.capHits++
	_ = a.releaseLocked(in)
	a.lg.Warn("hold cap reached, released", "input", in.String(), "cap", a.opts.MaxHold)
}

// CapHits reports how many holds the safety cap has cut short.
func (a *Actuator) CapHits() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capHits
}

// Held returns the inputs currently held, sorted for stable output.
func (a *Actuator) Held() []Input {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heldLocked()
}

// IsHeld reports whether in is currently held.
func (a *Actuator) IsHeld(in Input) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.held[in]
	return ok
}

func (a *Actuator) heldLocked() []Input {
	out := make([]Input, 0, len(a.held))
	for in := range a.held {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (a *Actuator) toggle(in Input, down bool) error {
	if in.Kind == KindButton {
		return a.backend.ToggleButton(in.Name, down)
	}
	return a.backend.ToggleKey(in.Name, down)
}
