// Package loop runs the fixed-rate control loop: capture, detect, track,
// aim, sequence the attack and enforce the hold cap, once per tick.
package loop

import (
	"fmt"
	"sync/atomic"

	"github.com/teslashibe/go-hunter/internal/config"
)

// Mode is the loop's top-level state.
type Mode int32

const (
	Stopped Mode = iota
	Running
	Recording
)

func (m Mode) String() string {
	switch m {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Command is a request consumed by the loop at the next tick boundary.
type Command int

const (
	CmdToggle Command = iota + 1
	CmdStart
	CmdStop
	CmdRecord
	CmdExit
)

var commandNames = map[Command]string{
	CmdToggle: "toggle",
	CmdStart:  "start",
	CmdStop:   "stop",
	CmdRecord: "record",
	CmdExit:   "exit",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// ParseCommand maps a command name to a Command.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

const commandBuffer = 16

// Shared is the state the loop shares with hotkeys and the dashboard: the
// mode, the stop flag, the command channel and the config store. The loop
// is the only writer of the mode.
type Shared struct {
	Config *config.Store

	mode atomic.Int32
	stop atomic.Bool
	cmds chan Command
}

// NewShared creates a Shared over store.
func NewShared(store *config.Store) *Shared {
	return &Shared{Config: store, cmds: make(chan Command, commandBuffer)}
}

// Mode returns the current mode.
func (s *Shared) Mode() Mode { return Mode(s.mode.Load()) }

func (s *Shared) setMode(m Mode) { s.mode.Store(int32(m)) }

// Enqueue queues cmd without blocking.
func (s *Shared) Enqueue(cmd Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// RequestStop raises the stop flag. The loop polls it at the top of every
// tick and stops the run, releasing all input.
func (s *Shared) RequestStop() { s.stop.Store(true) }

func (s *Shared) takeStop() bool { return s.stop.Swap(false) }
