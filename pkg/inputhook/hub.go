package inputhook

import (
	"context"
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"

	"github.com/teslashibe/go-hunter/internal/log"
)

// Source produces raw events until it is stopped.
type Source interface {
	Start() <-chan Event
	Stop()
}

// Hub runs one Source and fans every event out to all subscribers.
// Slow subscribers lose events rather than stall the hook.
type Hub struct {
	src Source

	mu   sync.RWMutex
	subs map[int]chan Event
	next int

	dropped uint64
}

// NewHub creates a Hub over src.
func NewHub(src Source) *Hub {
	return &Hub{src: src, subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, buffer)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Run pumps events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events := h.src.Start()
	defer h.src.Stop()
	log.Info("input hook started")

	for {
		select {
		case <-ctx.Done():
			log.Info("input hook stopped", "dropped", h.dropped)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

// GohookSource reads the process-wide gohook event stream.
type GohookSource struct {
	out  chan Event
	done chan struct{}
	once sync.Once
}

// NewGohookSource returns a Source backed by gohook.
func NewGohookSource() *GohookSource {
	return &GohookSource{out: make(chan Event, 256), done: make(chan struct{})}
}

// Start begins listening. gohook allows one listener per process.
func (g *GohookSource) Start() <-chan Event {
	raw := hook.Start()
	go func() {
		defer close(g.out)
		for {
			select {
			case <-g.done:
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				if e, ok := translate(ev); ok {
					select {
					case g.out <- e:
					case <-g.done:
						return
					}
				}
			}
		}
	}()
	return g.out
}

// Stop ends the gohook session.
func (g *GohookSource) Stop() {
	g.once.Do(func() {
		close(g.done)
		hook.End()
	})
}

// translate maps gohook events onto Event. gohook numbers its kinds after
// libuiohook: KeyHold is the raw key press (it repeats while held),
// MouseHold the raw button press and MouseDown the button release.
func translate(ev hook.Event) (Event, bool) {
	at := ev.When
	if at.IsZero() {
		at = time.Now()
	}
	out := Event{X: int(ev.X), Y: int(ev.Y), At: at}

	switch ev.Kind {
	case hook.KeyHold:
		out.Kind = KeyDown
		out.Key = keyName(ev)
	case hook.KeyUp:
		out.Kind = KeyUp
		out.Key = keyName(ev)
	case hook.MouseHold:
		out.Kind = ButtonDown
		out.Button = buttonName(ev.Button)
	case hook.MouseDown:
		out.Kind = ButtonUp
		out.Button = buttonName(ev.Button)
	case hook.MouseMove, hook.MouseDrag:
		out.Kind = Move
	default:
		return Event{}, false
	}
	if (out.Kind == KeyDown || out.Kind == KeyUp) && out.Key == "" {
		return Event{}, false
	}
	if (out.Kind == ButtonDown || out.Kind == ButtonUp) && out.Button == "" {
		return Event{}, false
	}
	return out, true
}

func keyName(ev hook.Event) string {
	name := hook.RawcodetoKeychar(ev.Rawcode)
	if name == "" && ev.Keychar > 0 && ev.Keychar != charUndefined {
		name = string(ev.Keychar)
	}
	return strings.ToLower(name)
}

// libuiohook button numbers
const (
	mouseLeft   = 1
	mouseRight  = 2
	mouseMiddle = 3

	charUndefined = 0xFFFF
)

func buttonName(b uint16) string {
	switch b {
	case mouseLeft:
		return "left"
	case mouseRight:
		return "right"
	case mouseMiddle:
		return "middle"
	default:
		return ""
	}
}
