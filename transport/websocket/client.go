package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 4096

// Client is one websocket connection. Only writePump writes to conn.
type Client struct {
	token string
	conn  *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	pongWait  time.Duration
	writeWait time.Duration
}

func newClient(token string, conn *websocket.Conn, queue int, pongWait, writeWait time.Duration) *Client {
	return &Client{
		token:     token,
		conn:      conn,
		send:      make(chan []byte, queue),
		done:      make(chan struct{}),
		pongWait:  pongWait,
		writeWait: writeWait,
	}
}

// enqueue - non-blocking. False means the client is gone or too slow.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump - reads frames until the connection fails and hands each one to handle.
func (c *Client) readPump(handle func(data []byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}

		handle(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
