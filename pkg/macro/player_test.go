package macro

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-hunter/internal/timeutil"
	"github.com/teslashibe/go-hunter/pkg/actuator"
	"github.com/teslashibe/go-hunter/pkg/inputhook"
)

type emitted struct {
	op string
	in actuator.Input
	at time.Time
}

// recordingEmitter stamps every call with the clock's time.
type recordingEmitter struct {
	mu    sync.Mutex
	clock timeutil.Clock
	calls []emitted
}

func (r *recordingEmitter) add(op string, in actuator.Input) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, emitted{op, in, r.clock.Now()})
	return nil
}

func (r *recordingEmitter) Press(in actuator.Input) error   { return r.add("press", in) }
func (r *recordingEmitter) Release(in actuator.Input) error { return r.add("release", in) }
func (r *recordingEmitter) MoveTo(x, y int) error           { return r.add("move", actuator.Input{}) }

func (r *recordingEmitter) snapshot() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emitted(nil), r.calls...)
}

// drive advances the mock clock one millisecond at a time whenever the
// player is waiting, until done closes.
func drive(t *testing.T, clock *timeutil.MockClock, done <-chan struct{}) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case <-done:
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("playback did not finish")
		}
		if clock.Waiters() > 0 {
			clock.Advance(time.Millisecond)
			continue
		}
		time.Sleep(50 * time.Microsecond)
	}
}

func TestPlayer_TimingFidelity(t *testing.T) {
	t0 := time.Unix(0, 0)
	clock := timeutil.NewMockClock(t0)
	em := &recordingEmitter{clock: clock}
	p := NewPlayer(em, clock)

	seq := &Sequence{
		Duration: ms(500),
		Actions: []Action{
			{Kind: KindButtonDown, Button: "left", Offset: ms(10)},
			{Kind: KindKeyDown, Key: "e", Offset: ms(10)},
			{Kind: KindKeyUp, Key: "e", Offset: ms(60)},
			{Kind: KindMove, X: 1, Y: 1, Offset: ms(75)},
			{Kind: KindButtonUp, Button: "left", Offset: ms(310)},
		},
	}

	done := make(chan struct{})
	var err error
	go func() {
		err = p.Play(context.Background(), seq, nil)
		close(done)
	}()
	drive(t, clock, done)

	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	calls := em.snapshot()
	if len(calls) != len(seq.Actions) {
		t.Fatalf("emitted %d actions, want %d", len(calls), len(seq.Actions))
	}
	for i, c := range calls {
		if got := c.at.Sub(t0); got != seq.Actions[i].Offset {
			t.Errorf("action %d at %v, want %v", i, got, seq.Actions[i].Offset)
		}
	}
	if got := clock.Now().Sub(t0); got != ms(500) {
		t.Errorf("playback ended at %v, want recorded duration 500ms", got)
	}
	if p.Playing() {
		t.Error("Playing after completion")
	}
}

func TestPlayer_CancelReleasesHeld(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	em := &recordingEmitter{clock: clock}
	p := NewPlayer(em, clock)

	seq := &Sequence{Actions: []Action{
		{Kind: KindButtonDown, Button: "left", Offset: 0},
		{Kind: KindKeyDown, Key: "w", Offset: 0},
		{Kind: KindKeyUp, Key: "w", Offset: ms(10)},
		{Kind: KindButtonUp, Button: "left", Offset: 5 * time.Second},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var cancelled bool
	done := make(chan struct{})
	var err error
	go func() {
		err = p.Play(ctx, seq, func() { cancelled = true })
		close(done)
	}()

	// Let the first gap elapse, then cancel during the long wait
	for clock.Waiters() == 0 {
		time.Sleep(50 * time.Microsecond)
	}
	clock.Advance(ms(10))
	for len(em.snapshot()) < 3 || clock.Waiters() == 0 {
		time.Sleep(50 * time.Microsecond)
	}
	if !p.Playing() {
		t.Error("Playing should be true mid-sequence")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Play = %v, want context.Canceled", err)
	}
	if !cancelled {
		t.Error("onCancel not called")
	}
	calls := em.snapshot()
	last := calls[len(calls)-1]
	if last.op != "release" || last.in != actuator.Button("left") {
		t.Errorf("last call = %+v, want release of left button", last)
	}
	for _, c := range calls {
		if c.op == "release" && c.in == actuator.Key("w") && c.at.Sub(time.Unix(0, 0)) > ms(10) {
			t.Error("already released key was released again on cancel")
		}
	}
}

func TestPlayer_RejectsConcurrentPlay(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	em := &recordingEmitter{clock: clock}
	p := NewPlayer(em, clock)

	seq := &Sequence{Actions: []Action{
		{Kind: KindKeyDown, Key: "a", Offset: time.Second},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Play(ctx, seq, nil)
		close(done)
	}()
	for clock.Waiters() == 0 {
		time.Sleep(50 * time.Microsecond)
	}

	if err := p.Play(context.Background(), seq, nil); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("second Play = %v, want ErrAlreadyPlaying", err)
	}
	cancel()
	<-done
}

func TestPlayer_RejectsInvalidSequence(t *testing.T) {
	p := NewPlayer(&recordingEmitter{clock: timeutil.RealClock{}}, nil)
	if err := p.Play(context.Background(), &Sequence{}, nil); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("Play(empty) = %v", err)
	}
}

func TestPlayer_RealClockNoCatchUp(t *testing.T) {
	em := &recordingEmitter{clock: timeutil.RealClock{}}
	p := NewPlayer(em, nil)
	seq := &Sequence{Actions: []Action{
		{Kind: KindKeyDown, Key: "a", Offset: ms(20)},
		{Kind: KindKeyUp, Key: "a", Offset: ms(60)},
	}}

	start := time.Now()
	if err := p.Play(context.Background(), seq, nil); err != nil {
		t.Fatal(err)
	}
	calls := em.snapshot()
	if gap := calls[1].at.Sub(calls[0].at); gap < ms(40) {
		t.Errorf("gap = %v, want >= 40ms", gap)
	}
	if elapsed := time.Since(start); elapsed < ms(60) {
		t.Errorf("elapsed = %v, want >= 60ms", elapsed)
	}
}

func TestRecordThenPlay_PreservesGaps(t *testing.T) {
	rec := NewRecorder(0, "f3")
	start := time.Unix(500, 0)
	if err := rec.Start(start); err != nil {
		t.Fatal(err)
	}
	at := []time.Duration{ms(40), ms(95), ms(96), ms(350), ms(610), ms(742)}
	events := []inputhook.Event{
		{Kind: inputhook.ButtonDown, Button: "right"},
		{Kind: inputhook.KeyDown, Key: "q"},
		{Kind: inputhook.Move, X: 30, Y: 40},
		{Kind: inputhook.KeyUp, Key: "q"},
		{Kind: inputhook.KeyDown, Key: "space"},
		{Kind: inputhook.ButtonUp, Button: "right"},
	}
	for i, ev := range events {
		ev.At = start.Add(at[i])
		rec.Feed(ev)
	}
	seq, err := rec.Stop(start.Add(ms(900)), "round trip")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	t0 := time.Unix(0, 0)
	clock := timeutil.NewMockClock(t0)
	em := &recordingEmitter{clock: clock}
	p := NewPlayer(em, clock)

	done := make(chan struct{})
	var playErr error
	go func() {
		playErr = p.Play(context.Background(), seq, nil)
		close(done)
	}()
	drive(t, clock, done)
	if playErr != nil {
		t.Fatalf("Play: %v", playErr)
	}

	// The held space key is released at the end of the sequence
	calls := em.snapshot()
	if len(calls) != len(events)+1 {
		t.Fatalf("emitted %d inputs, want %d", len(calls), len(events)+1)
	}
	for i := 1; i < len(events); i++ {
		want := at[i] - at[i-1]
		if got := calls[i].at.Sub(calls[i-1].at); got != want {
			t.Errorf("gap before action %d = %v, want %v", i, got, want)
		}
	}
	if got := calls[0].at.Sub(t0); got != at[0] {
		t.Errorf("first action at %v, want %v", got, at[0])
	}
	if last := calls[len(calls)-1]; last.op != "release" || last.in != actuator.Key("space") {
		t.Errorf("final call = %s %v, want release of space", last.op, last.in)
	}
	if got := clock.Now().Sub(t0); got != ms(900) {
		t.Errorf("playback ended at %v, want 900ms", got)
	}
}
