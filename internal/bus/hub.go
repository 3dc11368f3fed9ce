package bus

import "sync"

// Hub is the in-process bus: replicas living in one process (or one
// test) attach via Connect and the hub fans each publish out to every
// other attachment. Start it with `go hub.Run()` before connecting.
type Hub struct {
	// Attached replica connections.
	conns map[*Conn]bool

	// Inbound publications from the connections.
	publish chan Envelope

	// Register requests from new connections.
	register chan *Conn

	// Unregister requests from closing connections.
	unregister chan *Conn
}

func NewHub() *Hub {
	return &Hub{
		publish:    make(chan Envelope),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		conns:      make(map[*Conn]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.conns[conn] = true
		case conn := <-h.unregister:
			if _, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				close(conn.recv)
			}
		case env := <-h.publish:
			for conn := range h.conns {
				// The publisher never hears its own update back.
				if conn.origin == env.Origin {
					continue
				}
				select {
				case conn.recv <- env:
				default:
					// Slow consumer: drop. Delivery is at most once.
				}
			}
		}
	}
}

// Connect attaches a replica identified by origin and returns its Bus.
func (h *Hub) Connect(origin string) *Conn {
	conn := &Conn{
		hub:    h,
		origin: origin,
		recv:   make(chan Envelope, 16),
	}
	h.register <- conn
	go conn.dispatch()
	return conn
}

// Conn is one replica's attachment to a Hub.
type Conn struct {
	hub    *Hub
	origin string
	recv   chan Envelope

	mu       sync.Mutex
	handlers []Handler
	closed   bool
}

func (c *Conn) dispatch() {
	for env := range c.recv {
		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers...)
		c.mu.Unlock()
		for _, fn := range handlers {
			fn(env)
		}
	}
}

func (c *Conn) Publish(env Envelope) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	env.Origin = c.origin
	c.hub.publish <- env
	return nil
}

func (c *Conn) Subscribe(fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.handlers = append(c.handlers, fn)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.unregister <- c
	return nil
}
