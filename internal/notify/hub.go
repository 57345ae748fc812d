package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// wireMessage is the JSON envelope delivered to connected clients.
type wireMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one connected player socket.
type Client struct {
	PlayerUID int64
	Conn      *websocket.Conn
	Send      chan []byte
}

// writePump drains the client's send channel onto the socket. Started
// once by Register: gorilla connections allow a single concurrent
// writer, so this goroutine must stay the only caller of WriteMessage.
func (c *Client) writePump() {
	defer c.Conn.Close()
	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub tracks connected player sockets and implements Sender. Messages
// to players without a live connection are dropped: the chat platform
// is a best-effort delivery target and the router's retry policy
// applies above this layer.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[int64]*Client)}
}

// Register binds a socket to a player, replacing any previous one.
func (h *Hub) Register(uid int64, conn *websocket.Conn) *Client {
	client := &Client{PlayerUID: uid, Conn: conn, Send: make(chan []byte, 256)}

	h.mu.Lock()
	if prev, ok := h.clients[uid]; ok {
		close(prev.Send)
	}
	h.clients[uid] = client
	h.mu.Unlock()

	go client.writePump()
	return client
}

// Unregister drops a player's socket if it is still the current one.
func (h *Hub) Unregister(uid int64, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[uid]; ok && current == client {
		delete(h.clients, uid)
		close(client.Send)
	}
}

// Connected reports whether a player has a live socket.
func (h *Hub) Connected(uid int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[uid]
	return ok
}

// Send implements Sender by writing the message to the player's socket
// send channel.
func (h *Hub) Send(_ context.Context, msg Message) error {
	h.mu.RLock()
	client, ok := h.clients[msg.PlayerUID]
	h.mu.RUnlock()
	if !ok {
		// Not connected; nothing to deliver.
		return nil
	}

	data, err := json.Marshal(wireMessage{Type: msg.Type, Payload: msg.Payload})
	if err != nil {
		return err
	}

	select {
	case client.Send <- data:
		return nil
	default:
		log.Printf("[NOTIFY] send buffer full for player %d, dropping %s", msg.PlayerUID, msg.Type)
		return nil
	}
}
