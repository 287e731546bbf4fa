// Package attack sequences one attack cycle: IDLE -> LOAD -> FIRE ->
// COOLDOWN -> IDLE.
package attack

import (
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
)

// Phase is the active attack phase.
type Phase int

const (
	Idle Phase = iota
	Load
	Fire
	Cooldown
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Load:
		return "LOAD"
	case Fire:
		return "FIRE"
	case Cooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// Timings are the phase lengths.
type Timings struct {
	Load         time.Duration
	Fire         time.Duration
	Cooldown     time.Duration
	LootInterval time.Duration // secondary-key tap period during COOLDOWN
}

// DefaultTimings returns the standard 1.0s / 5.0s / 5.2s cycle.
func DefaultTimings() Timings {
	return Timings{
		Load:         time.Second,
		Fire:         5 * time.Second,
		Cooldown:     5200 * time.Millisecond,
		LootInterval: 200 * time.Millisecond,
	}
}

// Length returns the duration of p. IDLE has no length.
func (t Timings) Length(p Phase) time.Duration {
	switch p {
	case Load:
		return t.Load
	case Fire:
		return t.Fire
	case Cooldown:
		return t.Cooldown
	default:
		return 0
	}
}

// Config configures a Machine.
type Config struct {
	Timings
	PrimaryButton string
	SecondaryKey  string
	UseSequence   bool // hand input to the recorded sequence when one is loaded
}

// ConfigFrom extracts attack settings from the runtime config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Timings: Timings{
			Load:         c.LoadDuration(),
			Fire:         c.FireDuration(),
			Cooldown:     c.CooldownDuration(),
			LootInterval: c.LootInterval(),
		},
		PrimaryButton: c.Attack.PrimaryButton,
		SecondaryKey:  c.Attack.SecondaryKey,
		UseSequence:   c.Attack.CustomSequenceEnabled,
	}
}

// CycleStats describes one completed cycle.
type CycleStats struct {
	Number    int           `json:"number"`
	Mode      string        `json:"mode"` // builtin or sequence
	Started   time.Time     `json:"started"`
	Completed time.Time     `json:"completed"`
	Duration  time.Duration `json:"duration"`
	LootTaps  int           `json:"loot_taps"`
}

// Observer is told about phase changes and completed cycles. Calls are
// made on the caller's goroutine inside Step and Stop; implementations
// must not block.
type Observer interface {
	PhaseEntered(p Phase, at time.Time)
	CycleCompleted(s CycleStats)
}

type nopObserver struct{}

func (nopObserver) PhaseEntered(Phase, time.Time) {}
func (nopObserver) CycleCompleted(CycleStats)     {}
