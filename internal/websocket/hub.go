// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Message types pushed to dashboard clients.
const (
	TypeReading    = "sensor_reading"
	TypeConnection = "connection"
	TypeHealth     = "health"
	TypeAlert      = "alert"
)

// Envelope is the frame format sent to dashboard clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const broadcastBuffer = 256

// Hub maintains the set of active dashboard clients and broadcasts console
// updates to them. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	stopped    chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		stopped:    make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run serves the hub until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("Dashboard client registered", "remote", client.remoteAddr())

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Debug("Dashboard client unregistered", "remote", client.remoteAddr())
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow client: drop it rather than stall the hub.
					h.logger.Warn("Dashboard client send buffer full, removing", "remote", client.remoteAddr())
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// RegisterClient safely registers a new client to the hub. It reports false
// once the hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// ClientCount returns the number of registered clients, or 0 once the hub
// has stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.stopped:
		return 0
	}
}

// Broadcast queues a typed frame for every client. When the queue is full
// the frame is dropped.
func (h *Hub) Broadcast(msgType string, payload any) {
	messageBytes, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("Error marshalling broadcast", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- messageBytes:
	default:
		h.logger.Warn("Broadcast queue full, dropping frame", "type", msgType)
	}
}
