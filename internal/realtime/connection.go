package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection wraps a websocket and coordinates outbound writes via a
// buffered channel. One connection backs one open thread view; it is safe
// for concurrent use.
type Connection struct {
	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

// NewConnection wraps an upgraded websocket.
func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ws:    ws,
		send:  make(chan []byte, 128),
		close: make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer
// is full, the connection is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return errors.New("connection closed")
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Closed reports whether the connection has been shut down.
func (c *Connection) Closed() <-chan struct{} {
	return c.close
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
