package macro

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/pkg/inputhook"
)

// Recorder turns raw input events into a Sequence. Feed it every event
// from the input hook; it ignores events while not recording.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	start     time.Time
	actions   []Action
	skip      map[string]bool
	down      map[string]bool
	lastMove  time.Time
	moveEvery time.Duration
}

// NewRecorder returns a Recorder that never records the given keys
// (the hotkeys that control recording itself). Mouse moves closer together
// than moveEvery are coalesced.
func NewRecorder(moveEvery time.Duration, skipKeys ...string) *Recorder {
	r := &Recorder{moveEvery: moveEvery}
	r.SetSkipKeys(skipKeys...)
	return r
}

// SetSkipKeys replaces the set of keys that are never recorded.
func (r *Recorder) SetSkipKeys(keys ...string) {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[strings.ToLower(k)] = true
	}
	r.mu.Lock()
	r.skip = skip
	r.mu.Unlock()
}

// Recording reports whether a recording is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins a new recording at now.
func (r *Recorder) Start(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.start = now
	r.actions = nil
	r.down = make(map[string]bool)
	r.lastMove = time.Time{}
	log.Info("recording started")
	return nil
}

// Feed records ev if a recording is active.
func (r *Recorder) Feed(ev inputhook.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	at := ev.At
	if at.Before(r.start) {
		return
	}
	offset := at.Sub(r.start)
	if n := len(r.actions); n > 0 && offset < r.actions[n-1].Offset {
		// Hook timestamps can jitter; keep offsets monotonic
		offset = r.actions[n-1].Offset
	}

	var a Action
	switch ev.Kind {
	case inputhook.KeyDown, inputhook.KeyUp:
		key := strings.ToLower(ev.Key)
		if r.skip[key] {
			return
		}
		id := "k:" + key
		if ev.Kind == inputhook.KeyDown {
			// Auto-repeat
			if r.down[id] {
				return
			}
			r.down[id] = true
			a = Action{Kind: KindKeyDown, Key: key}
		} else {
			delete(r.down, id)
			a = Action{Kind: KindKeyUp, Key: key}
		}
	case inputhook.ButtonDown, inputhook.ButtonUp:
		id := "b:" + ev.Button
		if ev.Kind == inputhook.ButtonDown {
			if r.down[id] {
				return
			}
			r.down[id] = true
			a = Action{Kind: KindButtonDown, Button: ev.Button}
		} else {
			delete(r.down, id)
			a = Action{Kind: KindButtonUp, Button: ev.Button}
		}
	case inputhook.Move:
		if !r.lastMove.IsZero() && at.Sub(r.lastMove) < r.moveEvery {
			return
		}
		r.lastMove = at
		a = Action{Kind: KindMove, X: ev.X, Y: ev.Y}
	default:
		return
	}
	a.Offset = offset
	r.actions = append(r.actions, a)
}

// Stop ends the recording at now and returns the validated sequence.
func (r *Recorder) Stop(now time.Time, name string) (*Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, ErrNotRecording
	}
	r.recording = false

	if name == "" {
		name = "Custom Attack"
	}
	seq := &Sequence{
		ID:         uuid.New(),
		Name:       name,
		RecordedAt: r.start,
		Duration:   now.Sub(r.start),
		Actions:    r.actions,
	}
	r.actions = nil
	if err := seq.Validate(); err != nil {
		log.Warn("recording discarded", "error", err)
		return nil, err
	}
	log.Info("recording stopped", "actions", len(seq.Actions), "duration", seq.Duration)
	return seq, nil
}

// Run feeds every event from events until the channel closes.
func (r *Recorder) Run(events <-chan inputhook.Event) {
	for ev := range events {
		r.Feed(ev)
	}
}
