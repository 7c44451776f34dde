package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/trackcam/internal/stream"
	"github.com/ayusman/trackcam/internal/tracking"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	writeWait   = 5 * time.Second
	clientQueue = 16
)

// ModeMessage is pushed to websocket clients. The first message after
// connecting has type "snapshot" and carries the current mode.
type ModeMessage struct {
	Type      string        `json:"type"`
	Previous  tracking.Mode `json:"previous"`
	Mode      tracking.Mode `json:"mode"`
	Timestamp int64         `json:"timestamp"`
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHandler broadcasts tracking mode changes via WebSocket.
type EventsHandler struct {
	modes   stream.ModeSource
	clients map[*eventClient]bool
	mu      sync.RWMutex
}

// NewEventsHandler creates an EventsHandler. Register its Notify method as
// a tracking.Listener to feed it.
func NewEventsHandler(modes stream.ModeSource) *EventsHandler {
	return &EventsHandler{
		modes:   modes,
		clients: make(map[*eventClient]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &eventClient{conn: conn, send: make(chan []byte, clientQueue)}

	current := h.modes.CurrentMode()
	c.send <- encodeMessage(ModeMessage{Type: "snapshot", Previous: current, Mode: current})

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	<-done
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify sends a mode change to every connected client. It never blocks:
// a client whose queue is full misses the message.
func (h *EventsHandler) Notify(previous, current tracking.Mode) {
	msg := encodeMessage(ModeMessage{Type: "mode", Previous: previous, Mode: current})

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("websocket client %s is slow, dropping mode event", c.conn.RemoteAddr())
		}
	}
}

func (h *EventsHandler) writeLoop(c *eventClient, done chan<- struct{}) {
	defer close(done)

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Unblock the read loop so ServeHTTP can clean up
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func encodeMessage(m ModeMessage) []byte {
	m.Timestamp = time.Now().UnixMilli()
	msg, _ := json.Marshal(m)
	return msg
}
