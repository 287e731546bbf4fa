// Package hotkey turns global key presses into control loop commands.
package hotkey

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/pkg/inputhook"
	"github.com/teslashibe/go-hunter/pkg/loop"
)

// Commander receives the commands a Listener produces. *loop.Shared
// implements it.
type Commander interface {
	Mode() loop.Mode
	Enqueue(cmd loop.Command) error
	RequestStop()
}

// Listener maps key-down events to commands with per-key debounce.
// Bindings are read from the config store on every event, so a reload
// rebinds without a restart.
type Listener struct {
	store *config.Store
	cmds  Commander

	mu   sync.Mutex
	last map[string]time.Time
}

// NewListener creates a Listener that sends to cmds.
func NewListener(store *config.Store, cmds Commander) *Listener {
	return &Listener{store: store, cmds: cmds, last: make(map[string]time.Time)}
}

// Handle processes one input event. It reports the command sent, if any.
func (l *Listener) Handle(ev inputhook.Event) (loop.Command, bool) {
	if ev.Kind != inputhook.KeyDown {
		return 0, false
	}
	cfg := l.store.Current()
	key := strings.ToLower(ev.Key)

	var cmd loop.Command
	switch key {
	case strings.ToLower(cfg.Hotkeys.Toggle):
		cmd = loop.CmdToggle
	case strings.ToLower(cfg.Hotkeys.Record):
		cmd = loop.CmdRecord
	case strings.ToLower(cfg.Hotkeys.Exit):
		cmd = loop.CmdExit
	default:
		return 0, false
	}

	if !l.accept(key, ev.At, cfg.HotkeyDebounce()) {
		log.Debug("hotkey debounced", "key", key)
		return 0, false
	}

	err := l.cmds.Enqueue(cmd)
	if errors.Is(err, loop.ErrCommandQueueFull) && cmd != loop.CmdRecord {
		// Stopping must not depend on queue space
		l.cmds.RequestStop()
		log.Warn("command queue full, requested stop", "key", key)
		return cmd, true
	}
	if err != nil {
		log.Warn("hotkey dropped", "key", key, "error", err)
		return 0, false
	}
	log.Debug("hotkey", "key", key, "cmd", cmd.String(), "mode", l.cmds.Mode().String())
	return cmd, true
}

func (l *Listener) accept(key string, at time.Time, debounce time.Duration) bool {
	if at.IsZero() {
		at = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last[key]; ok && debounce > 0 && at.Sub(prev) < debounce {
		return false
	}
	l.last[key] = at
	return true
}

// Run handles events until the channel closes.
func (l *Listener) Run(events <-chan inputhook.Event) {
	for ev := range events {
		l.Handle(ev)
	}
}
