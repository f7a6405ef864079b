// Package floor pushes reservation and table changes to the staff floor board
// over websockets.
package floor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-reservations/events"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many messages a client may lag behind before the hub
	// gives up on it.
	sendBuffer = 32
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	role string
	send chan []byte
}

// Hub holds the connected floor clients (staff, admin). Each client has its
// own writer goroutine so a slow socket never holds up the others.
type Hub struct {
	clients map[*websocket.Conn]*client
	mutex   sync.Mutex
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		log:     log,
	}
}

func (h *Hub) Register(conn *websocket.Conn, role string) {
	c := &client{conn: conn, role: role, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()

	h.log.WithField("role", role).Debug("floor client connected")
	go h.writePump(c)
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if c, ok := h.clients[conn]; ok {
		h.drop(c)
	}
}

// drop must be called with the mutex held. The writer goroutine closes the
// connection once it sees the closed channel.
func (h *Hub) drop(c *client) {
	delete(h.clients, c.conn)
	close(c.send)
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.WithError(err).WithField("role", c.role).Warn("floor client write failed, dropping")
			h.Unregister(c.conn)
			return
		}
	}
}

// Publish makes the hub an events.Publisher; every event is broadcast as-is.
func (h *Hub) Publish(ctx context.Context, evt events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.Broadcast(Message{Event: evt.Type, Data: evt})
	return nil
}

// Broadcast queues msg for every client without blocking. A client whose
// buffer is full is dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("marshal floor message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("role", c.role).Warn("floor client too slow, dropping")
			h.drop(c)
		}
	}
}
