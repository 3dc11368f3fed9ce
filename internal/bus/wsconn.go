package bus

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// WSConn attaches a replica to a cross-process bus hosted by a relay
// (internal/bus/relay). The relay is a dumb fan-out, so self-origin
// filtering happens here on receive.
type WSConn struct {
	conn   *websocket.Conn
	origin string

	mu       sync.Mutex
	handlers []Handler
	closed   bool
}

// Dial connects to a relay's /bus endpoint.
func Dial(url, origin string) (*WSConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	c := &WSConn{conn: conn, origin: origin}
	go c.readPump()
	return c, nil
}

func (c *WSConn) readPump() {
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				log.Printf("Bus connection lost: %v", err)
			}
			return
		}
		if env.Origin == c.origin {
			continue
		}
		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers...)
		c.mu.Unlock()
		for _, fn := range handlers {
			fn(env)
		}
	}
}

func (c *WSConn) Publish(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	env.Origin = c.origin
	return c.conn.WriteJSON(env)
}

func (c *WSConn) Subscribe(fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.handlers = append(c.handlers, fn)
}

func (c *WSConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
