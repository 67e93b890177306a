// Package ws fans agent events out to dashboard WebSocket subscribers.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection represents one subscriber
type Connection struct {
	Send chan []byte
}

// Hub manages dashboard subscriber connections. All subscribers see
// every event; there is no per-topic routing.
type Hub struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	conns map[*Connection]struct{}

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		logger:     logger.With().Str("component", "ws").Logger(),
		conns:      make(map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan []byte, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Int("subscribers", h.count()).Msg("Subscriber connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			h.logger.Debug().Int("subscribers", h.count()).Msg("Subscriber disconnected")

		case data := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.conns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if the subscriber's buffer is full
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for conn := range h.conns {
				close(conn.Send)
			}
			h.conns = make(map[*Connection]struct{})
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast wraps a payload in the event envelope and queues it for
// every subscriber. Implements the agent's Broadcaster.
func (h *Hub) Broadcast(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode event payload")
		return
	}

	data, err := json.Marshal(&Message{Type: event, Payload: raw})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode event envelope")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Str("event", event).Msg("Broadcast queue full, event dropped")
	}
}

// Stop shuts the dispatch loop down and closes all subscriber channels.
// Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}
