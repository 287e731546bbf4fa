// Package notify delivers loop events to outbound sinks without blocking
// the control loop.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/pkg/attack"
)

// Type names an event. Values match the keys under notify.events.
type Type string

const (
	TargetAcquired Type = "target_acquired"
	TargetLost     Type = "target_lost"
	PhaseEntered   Type = "phase_entered"
	CycleCompleted Type = "cycle_completed"
	LoopStarted    Type = "loop_started"
	LoopStopped    Type = "loop_stopped"
)

// Target is the tracked position when an event fired.
type Target struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Summary is the session report attached to loop lifecycle events.
type Summary struct {
	Started      time.Time     `json:"started"`
	Runtime      time.Duration `json:"runtime"`
	Ticks        int64         `json:"ticks"`
	Detections   int64         `json:"detections"`
	Acquisitions int64         `json:"acquisitions"`
	Cycles       int64         `json:"cycles"`
	Reason       string        `json:"reason,omitempty"`
}

// Event is one outbound notification.
type Event struct {
	ID      uuid.UUID          `json:"id"`
	Type    Type               `json:"type"`
	At      time.Time          `json:"at"`
	Session uuid.UUID          `json:"session"`
	Phase   string             `json:"phase,omitempty"`
	Cycle   *attack.CycleStats `json:"cycle,omitempty"`
	Target  *Target            `json:"target,omitempty"`
	Summary *Summary           `json:"summary,omitempty"`
}

// New returns an event of type t with a fresh ID.
func New(t Type, at time.Time, session uuid.UUID) Event {
	return Event{ID: uuid.New(), Type: t, At: at, Session: session}
}

// rateKey groups events for rate limiting. Phase events are limited per phase.
func (e Event) rateKey() string {
	if e.Phase != "" {
		return string(e.Type) + ":" + e.Phase
	}
	return string(e.Type)
}

// Sink delivers events somewhere.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogSink writes every event to the log.
type LogSink struct {
	lg *slog.Logger
}

// NewLogSink returns a LogSink on the component logger.
func NewLogSink() *LogSink {
	return &LogSink{lg: log.With("component", "events")}
}

func (s *LogSink) Send(_ context.Context, ev Event) error {
	args := []any{"type", string(ev.Type), "session", ev.Session.String()}
	if ev.Phase != "" {
		args = append(args, "phase", ev.Phase)
	}
	if ev.Cycle != nil {
		args = append(args, "cycle", ev.Cycle.Number, "duration", ev.Cycle.Duration)
	}
	if ev.Target != nil {
		args = append(args, "x", ev.Target.X, "y", ev.Target.Y, "confidence", ev.Target.Confidence)
	}
	if ev.Summary != nil {
		args = append(args, "runtime", ev.Summary.Runtime, "cycles", ev.Summary.Cycles)
	}
	s.lg.Info("event", args...)
	return nil
}
