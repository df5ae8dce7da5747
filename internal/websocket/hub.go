package websocket

import (
	"log"
	"sync"
)

// Hub fans counter updates out to every connected viewer. Listing pages keep
// their displayed totals live by applying vote_update messages client-side.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to all clients
	broadcast chan *Message

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex
}

// Message represents a WebSocket message
type Message struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`

	// targetKey routes the message through client subscriptions; empty
	// means deliver to everyone.
	targetKey string
}

func targetKey(targetType, targetID string) string {
	return targetType + ":" + targetID
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client registered: UserID=%s, total clients: %d", client.UserID, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("Client unregistered: UserID=%s", client.UserID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if message.targetKey != "" && !client.wantsTarget(message.targetKey) {
					continue
				}
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToAll sends a message to all connected clients
func (h *Hub) BroadcastToAll(payload map[string]interface{}) {
	message := &Message{
		Type:    "broadcast",
		Payload: payload,
	}
	if t, ok := payload["type"].(string); ok {
		message.Type = t
	}
	h.enqueue(message)
}

// BroadcastVoteUpdate sends a counter update to clients watching the target
func (h *Hub) BroadcastVoteUpdate(targetType, targetID string, payload map[string]interface{}) {
	h.enqueue(&Message{
		Type:      "vote_update",
		Payload:   payload,
		targetKey: targetKey(targetType, targetID),
	})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("Broadcast channel full, dropping message")
	}
}

// ClientCount returns the total number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
