// Package hub fans broadcast messages out to websocket clients through a
// single goroutine that owns the client set.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-hunter/internal/log"
)

const (
	broadcastBuffer = 64
	clientBuffer    = 32
)

// Message is one broadcast payload. Kind is the websocket frame type,
// websocket.TextMessage or websocket.BinaryMessage.
type Message struct {
	Kind int
	Data []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The last message is kept and replayed to new clients when Replay is set.
type Hub struct {
	name string
	lg   *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	count   int
	last    *Message
	replay  bool
	onCount func(int)

	running atomic.Bool
	dropped atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithReplay sends the most recent message to each new client.
func WithReplay() Option {
	return func(h *Hub) { h.replay = true }
}

// WithCountHook is called with the client count after every change.
func WithCountHook(fn func(int)) Option {
	return func(h *Hub) { h.onCount = fn }
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		lg:         log.With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run fans messages out to clients until ctx is cancelled. Every client
// is disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.count = 0
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			if h.replay && h.last != nil {
				c.send <- *h.last
			}
			h.setCountLocked()
			h.mu.Unlock()
			h.lg.Debug("client connected", "clients", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCountLocked()
			h.mu.Unlock()
			h.lg.Debug("client disconnected", "clients", h.ClientCount())

		case msg := <-h.broadcast:
			h.mu.Lock()
			if h.replay {
				m := msg
				h.last = &m
			}
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop it rather than stall the others
					close(c.send)
					delete(h.clients, c)
					h.lg.Warn("dropped slow client")
				}
			}
			h.setCountLocked()
			h.mu.Unlock()
		}
	}
}

func (h *Hub) setCountLocked() {
	n := len(h.clients)
	if n == h.count {
		return
	}
	h.count = n
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Broadcast queues msg for every client. It never blocks; a full queue
// drops the message.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Kind: websocket.TextMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts binary data (JPEG frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Kind: websocket.BinaryMessage, Data: data})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were lost to a full queue.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
