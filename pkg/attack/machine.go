package attack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/pkg/actuator"
	"github.com/teslashibe/go-hunter/pkg/macro"
)

// Inputs is the part of the actuator the machine drives.
type Inputs interface {
	Press(in actuator.Input) error
	Release(in actuator.Input) error
	Tap(in actuator.Input) error
	Rotate(dir int) error
	ReleaseAll() error
}

// SequencePlayer replays a recorded sequence.
type SequencePlayer interface {
	Play(ctx context.Context, seq *macro.Sequence, onCancel func()) error
	Playing() bool
}

// stopWait bounds how long Stop waits for playback to unwind.
const stopWait = 250 * time.Millisecond

// Machine is the attack state machine. Phase timers are wall-clock from
// phase entry and are never reset by tracker changes: once LOAD is entered
// the cycle runs to completion unless Stop is called.
type Machine struct {
	in     Inputs
	player SequencePlayer
	obs    Observer
	lg     *slog.Logger

	mu       sync.Mutex
	cfg      Config
	seq      *macro.Sequence
	phase    Phase
	entered  time.Time
	length   time.Duration // length of the active phase, fixed at entry
	nextLoot time.Time

	cycle      CycleStats
	cycles     int
	useSeq     bool // the active cycle is driven by the sequence
	playCancel context.CancelFunc
	playDone   chan struct{}
}

// New creates a Machine in IDLE. player may be nil when custom sequences
// are not used; obs may be nil.
func New(cfg Config, in Inputs, player SequencePlayer, obs Observer) *Machine {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Machine{
		in:     in,
		player: player,
		obs:    obs,
		lg:     log.With("component", "attack"),
		cfg:    cfg,
	}
}

// SetConfig applies new settings. The active phase keeps the length it
// was entered with.
func (m *Machine) SetConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// SetSequence replaces the recorded sequence; nil clears it.
func (m *Machine) SetSequence(seq *macro.Sequence) {
	m.mu.Lock()
	m.seq = seq
	m.mu.Unlock()
}

// Sequence returns the loaded sequence, or nil.
func (m *Machine) Sequence() *macro.Sequence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Phase returns the active phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Stats is a point-in-time view of the machine.
type Stats struct {
	Phase    Phase     `json:"-"`
	Name     string    `json:"phase"`
	Entered  time.Time `json:"entered"`
	Cycles   int       `json:"cycles"`
	Sequence bool      `json:"sequence_mode"`
}

// Stats returns the current phase, its entry time and the cycle count.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Phase: m.phase, Name: m.phase.String(), Entered: m.entered, Cycles: m.cycles, Sequence: m.useSeq}
}

// Step advances the machine to now. locked is the tracker state for this
// tick. A late step crosses every boundary that has passed, entering each
// phase at its exact boundary time.
func (m *Machine) Step(now time.Time, locked bool) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		switch m.phase {
		case Idle:
			if locked {
				m.startCycle(now)
			}
			return m.phase

		case Load, Fire:
			end := m.entered.Add(m.length)
			if now.Before(end) {
				return m.phase
			}
			m.enter(m.phase+1, end)

		case Cooldown:
			end := m.entered.Add(m.length)
			if now.Before(end) {
				m.loot(now)
				return m.phase
			}
			m.loot(end.Add(-time.Nanosecond))
			m.completeCycle(end)
			// A lock that arrived during COOLDOWN starts the next cycle
			// only once IDLE is reached
			if locked {
				m.startCycle(now)
			}
			return m.phase
		}
	}
}

func (m *Machine) startCycle(at time.Time) {
	m.useSeq = m.cfg.UseSequence && m.seq != nil && m.player != nil
	mode := "builtin"
	if m.useSeq {
		mode = "sequence"
	}
	m.cycle = CycleStats{Number: m.cycles + 1, Mode: mode, Started: at}
	m.enter(Load, at)
}

func (m *Machine) completeCycle(at time.Time) {
	m.enter(Idle, at)
	m.cycles++
	m.cycle.Completed = at
	m.cycle.Duration = at.Sub(m.cycle.Started)
	m.lg.Info("attack cycle completed", "cycle", m.cycle.Number, "mode", m.cycle.Mode, "duration", m.cycle.Duration)
	m.obs.CycleCompleted(m.cycle)
}

// enter switches to p at time at and runs its entry action.
func (m *Machine) enter(p Phase, at time.Time) {
	m.phase = p
	m.entered = at
	m.length = m.cfg.Length(p)
	m.lg.Debug("phase entered", "phase", p.String(), "at", at)

	switch p {
	case Load:
		if m.useSeq {
			m.startPlayback()
		} else {
			m.do("press primary", m.in.Press(actuator.Button(m.cfg.PrimaryButton)))
		}
	case Fire:
		// Button stays held; camera is frozen
		m.do("freeze camera", m.in.Rotate(0))
	case Cooldown:
		m.do("freeze camera", m.in.Rotate(0))
		if !m.useSeq {
			m.do("release primary", m.in.Release(actuator.Button(m.cfg.PrimaryButton)))
			m.nextLoot = at
		}
	case Idle:
		m.nextLoot = time.Time{}
	}
	m.obs.PhaseEntered(p, at)
}

// loot taps the secondary key at most once per step, on the configured
// interval, while the built-in cooldown runs.
func (m *Machine) loot(now time.Time) {
	if m.useSeq || m.nextLoot.IsZero() || now.Before(m.nextLoot) {
		return
	}
	m.do("loot tap", m.in.Tap(actuator.Key(m.cfg.SecondaryKey)))
	m.cycle.LootTaps++
	interval := m.cfg.LootInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	for !m.nextLoot.After(now) {
		m.nextLoot = m.nextLoot.Add(interval)
	}
}

func (m *Machine) startPlayback() {
	if m.player.Playing() {
		m.lg.Warn("previous sequence still playing, not restarting")
		return
	}
	seq := m.seq
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.playCancel = cancel
	m.playDone = done

	go func() {
		defer close(done)
		defer cancel()
		err := m.player.Play(ctx, seq, func() {
			m.lg.Info("sequence playback cancelled", "sequence", seq.Name)
		})
		if err != nil && ctx.Err() == nil {
			m.lg.Warn("sequence playback failed", "error", err)
		}
	}()
}

func (m *Machine) do(what string, err error) {
	if err != nil {
		m.lg.Debug("attack input failed", "action", what, "error", err)
	}
}

// Stop forces IDLE from any phase: playback is cancelled, every held input
// is released and timers are discarded. It returns once inputs are released.
func (m *Machine) Stop(now time.Time) {
	m.mu.Lock()
	cancel, done := m.playCancel, m.playDone
	m.playCancel, m.playDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(stopWait):
			m.lg.Warn("sequence playback slow to stop")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.in.ReleaseAll(); err != nil {
		m.lg.Warn("release on stop incomplete", "error", err)
	}
	prev := m.phase
	m.phase = Idle
	m.entered = now
	m.length = 0
	m.nextLoot = time.Time{}
	m.useSeq = false
	if prev != Idle {
		m.lg.Info("attack stopped", "phase", prev.String())
		m.obs.PhaseEntered(Idle, now)
	}
}
