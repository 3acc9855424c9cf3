package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket timeout constants, matched to the teacher's chosen values
// (server/client.go) since nothing about this domain's message sizes
// argues for different numbers.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024 * 1024 // 1MB; graph edit batches are capped at 20 instructions
)

// Client is one WebSocket connection. It may be unbound (no instance),
// bound to a graph instance, or bound to a node-config instance;
// Manager.disconnectUser clears InstanceKey/BoundSheetID.
type Client struct {
	manager *Manager
	conn    *websocket.Conn
	log     *zap.SugaredLogger

	send chan any

	UserID       string
	UserName     string
	InstanceKey  string // set once registered
	IsNodeConfig bool
	BoundSheetID string // graph instances only; node-configs have no sheets

	closeOnce sync.Once
	closed    atomic.Bool
	lastPing  time.Time
}

func newClient(m *Manager, conn *websocket.Conn, log *zap.SugaredLogger) *Client {
	return &Client{
		manager: m,
		conn:    conn,
		log:     log,
		send:    make(chan any, 32),
	}
}

// Serve runs the client's read and write pumps; it blocks until the
// connection closes.
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.closeSend()
		c.manager.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		var msg InMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debugw("dropping malformed client message", "error", err)
			continue
		}

		if !c.manager.routeMessage(c, &msg) {
			return // protocol violation: socket already closing
		}
	}
}

func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.log.Debugw("websocket read error", "user", c.UserID, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debugw("websocket write error", "user", c.UserID, "error", err)
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

// sendJSON enqueues v for delivery on the write pump; it never blocks
// indefinitely — a full send buffer means the client is too slow and is
// dropped so one slow reader can't stall fan-out to everyone else.
func (c *Client) sendJSON(v any) {
	select {
	case c.send <- v:
	default:
		c.log.Warnw("client send buffer full, closing", "user", c.UserID)
		c.closeSend()
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.send)
	})
}

// IsClosed reports whether this client's socket has been torn down, for
// the eviction sweep to drop it from an instance's user set.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
