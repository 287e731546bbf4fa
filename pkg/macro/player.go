package macro

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/internal/timeutil"
	"github.com/teslashibe/go-hunter/pkg/actuator"
)

// Player replays sequences through an Emitter.
type Player struct {
	em    actuator.Emitter
	clock timeutil.Clock
	lg    *slog.Logger

	mu      sync.Mutex
	playing bool
}

// NewPlayer creates a Player. A nil clock uses the real clock.
func NewPlayer(em actuator.Emitter, clock timeutil.Clock) *Player {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Player{em: em, clock: clock, lg: log.With("component", "player")}
}

// Playing reports whether a sequence is being played.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play emits seq in order, waiting the recorded gap before each action.
// Gaps are never compressed to catch up. It blocks until the sequence ends
// or ctx is cancelled. On cancellation every input the sequence still holds
// is released, onCancel (if non-nil) is called and ctx.Err() is returned.
// Inputs still held when the sequence ends are released as well.
func (p *Player) Play(ctx context.Context, seq *Sequence, onCancel func()) error {
	if err := seq.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return ErrAlreadyPlaying
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	held := make(map[actuator.Input]bool)
	release := func() {
		for in := range held {
			if err := p.em.Release(in); err != nil {
				p.lg.Warn("release failed", "input", in.String(), "error", err)
			}
		}
	}

	p.lg.Debug("playback started", "sequence", seq.Name, "actions", len(seq.Actions))

	var prev time.Duration
	for i, a := range seq.Actions {
		delay := a.Offset - prev
		if delay < 0 {
			delay = 0
		}
		prev = a.Offset

		if err := ctx.Err(); err != nil {
			return p.cancelled(ctx, release, onCancel)
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return p.cancelled(ctx, release, onCancel)
			case <-p.clock.After(delay):
			}
		}

		if err := p.emit(a, held); err != nil {
			p.lg.Warn("action failed", "index", i, "kind", a.Kind, "error", err)
		}
	}

	// Trailing idle time up to the recorded duration
	if tail := seq.Duration - prev; tail > 0 {
		select {
		case <-ctx.Done():
			return p.cancelled(ctx, release, onCancel)
		case <-p.clock.After(tail):
		}
	}

	release()
	p.lg.Debug("playback finished", "sequence", seq.Name)
	return nil
}

func (p *Player) cancelled(ctx context.Context, release, onCancel func()) error {
	release()
	if onCancel != nil {
		onCancel()
	}
	p.lg.Debug("playback cancelled")
	return ctx.Err()
}

func (p *Player) emit(a Action, held map[actuator.Input]bool) error {
	if a.Kind == KindMove {
		return p.em.MoveTo(a.X, a.Y)
	}
	in, down, _ := a.Input()
	if down {
		held[in] = true
		return p.em.Press(in)
	}
	delete(held, in)
	return p.em.Release(in)
}
