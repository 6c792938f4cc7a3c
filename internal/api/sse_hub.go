package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"oncodetect/domain/core"
	"oncodetect/internal"
	"oncodetect/ports"
)

// EventState is the SSE event name for request state transitions
const EventState = "state"

// SSEHub fans request state transitions out to the browsers of a session.
// Subscriptions change the client set directly under clientsMu, so an
// Unsubscribe always observes the Subscribe that preceded it; only
// broadcasts pass through the dispatch loop.
type SSEHub struct {
	clients   map[core.SessionID]map[chan ports.StateEvent]bool
	clientsMu sync.RWMutex
	closed    bool
	broadcast chan ports.StateEvent
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	keepAlive time.Duration
	logger    *internal.Logger
}

// NewSSEHub creates a hub and starts its dispatch loop. Close stops it.
func NewSSEHub(logger *internal.Logger) *SSEHub {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	hub := &SSEHub{
		clients:   make(map[core.SessionID]map[chan ports.StateEvent]bool),
		broadcast: make(chan ports.StateEvent, 100),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		keepAlive: 30 * time.Second,
		logger:    logger,
	}

	go hub.run()
	return hub
}

// run delivers broadcasts until the hub closes
func (h *SSEHub) run() {
	defer close(h.stopped)
	for {
		select {
		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.SessionID] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("[SSE] Client channel full for session %s, skipping event", event.SessionID)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			h.closed = true
			for sessionID, clients := range h.clients {
				for ch := range clients {
					close(ch)
				}
				delete(h.clients, sessionID)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// BroadcastState implements ports.StateBroadcaster. It never blocks.
func (h *SSEHub) BroadcastState(event ports.StateEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		h.logger.Warn("[SSE] Broadcast channel full, dropping %s event", event.To)
	}
}

// Subscribe registers a listener for a session. The returned channel is
// closed after Unsubscribe or Close. It fails only once the hub is closed.
func (h *SSEHub) Subscribe(sessionID core.SessionID) (chan ports.StateEvent, bool) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if h.closed {
		return nil, false
	}
	ch := make(chan ports.StateEvent, 10)
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[chan ports.StateEvent]bool)
	}
	h.clients[sessionID][ch] = true
	h.logger.Debug("[SSE] Client registered for session %s (total clients: %d)",
		sessionID, len(h.clients[sessionID]))
	return ch, true
}

// Unsubscribe removes a listener and closes its channel. Unknown or
// already removed channels are ignored.
func (h *SSEHub) Unsubscribe(sessionID core.SessionID, ch chan ports.StateEvent) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	clients, exists := h.clients[sessionID]
	if !exists || !clients[ch] {
		return
	}
	delete(clients, ch)
	close(ch)
	h.logger.Debug("[SSE] Client unregistered from session %s (remaining clients: %d)",
		sessionID, len(clients))
	if len(clients) == 0 {
		delete(h.clients, sessionID)
	}
}

// HandleSSE streams state events of one session until the client leaves
func (h *SSEHub) HandleSSE(c *gin.Context, sessionID core.SessionID) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan, ok := h.Subscribe(sessionID)
	if !ok {
		c.JSON(503, gin.H{"error": "SSE hub registration failed"})
		return
	}
	defer h.Unsubscribe(sessionID, clientChan)

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-clientChan:
			if !open {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(EventState, string(eventJSON))
			return true

		case <-ticker.C:
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// GetClientCount returns the number of active clients for a session
func (h *SSEHub) GetClientCount(sessionID core.SessionID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[sessionID])
}

// Close stops the dispatch loop and disconnects every client
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		<-h.stopped
	})
}

var _ ports.StateBroadcaster = (*SSEHub)(nil)
