package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan *Message

	// User ID associated with this client, "" for anonymous viewers
	UserID string

	// Targets the client asked to watch. Empty means watch everything.
	mu   sync.Mutex
	subs map[string]bool
}

// NewClient creates a new client
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *Message, 256),
		UserID: userID,
		subs:   make(map[string]bool),
	}
}

func (c *Client) subscribe(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[key] = true
}

func (c *Client) unsubscribe(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, key)
}

// wantsTarget reports whether the client should receive updates for a
// target. A client with no subscriptions watches everything, which is what
// listing pages need.
func (c *Client) wantsTarget(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[key]
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Clients push pings and target subscriptions; counter updates
		// flow the other way.
		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			continue
		}
		msgType, _ := message["type"].(string)
		switch msgType {
		case "ping":
			c.send <- &Message{
				Type: "pong",
				Payload: map[string]interface{}{
					"timestamp": time.Now().Unix(),
				},
			}
		case "subscribe", "unsubscribe":
			targetType, _ := message["target_type"].(string)
			targetID, _ := message["target_id"].(string)
			if targetType == "" || targetID == "" {
				continue
			}
			if msgType == "subscribe" {
				c.subscribe(targetKey(targetType, targetID))
			} else {
				c.unsubscribe(targetKey(targetType, targetID))
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			jsonData, err := json.Marshal(message)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	c.readPump()
}
