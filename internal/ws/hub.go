package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

type controlWriter interface {
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// Client is one registered connection. Writes are serialised per client.
type Client struct {
	conn Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *Client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.conn.(deadlineWriter); ok {
		_ = d.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Ping sends a websocket ping when the connection supports control frames.
func (c *Client) Ping() error {
	cw, ok := c.conn.(controlWriter)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return cw.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks the live notification sockets of each user.
type Hub struct {
	users map[int64]map[Conn]*Client
	mu    sync.RWMutex
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{users: make(map[int64]map[Conn]*Client), log: log}
}

// Add registers conn for info.UserID.
func (h *Hub) Add(conn Conn, info ConnInfo) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[info.UserID]
	if !ok {
		conns = make(map[Conn]*Client)
		h.users[info.UserID] = conns
	}
	c := &Client{conn: conn, info: info}
	conns[conn] = c
	return c
}

// Remove unregisters conn. It reports whether conn was registered.
func (h *Hub) Remove(userID int64, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[userID]
	if !ok {
		return false
	}
	if _, ok := conns[conn]; !ok {
		return false
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.users, userID)
	}
	return true
}

// Connected returns how many sockets userID has open.
func (h *Hub) Connected(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Deliver writes payload to every socket of every target and returns the
// number of successful writes. Sockets failing a write are dropped.
func (h *Hub) Deliver(targets []int64, payload []byte) int {
	h.mu.RLock()
	var clients []*Client
	for _, id := range targets {
		for _, c := range h.users[id] {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.log.Warn("websocket write failed", zap.Int64("user_id", c.info.UserID), zap.String("conn_id", c.info.ConnID), zap.Error(err))
			_ = c.conn.Close()
			if h.Remove(c.info.UserID, c.conn) {
				publishWSEvent(context.Background(), c.info, "ws_error", err.Error())
			}
			continue
		}
		delivered++
	}
	return delivered
}
