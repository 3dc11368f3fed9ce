// Package relay hosts the cross-process bus: a websocket fan-out that
// forwards every frame to every client except its sender. It never
// inspects envelope payloads.
package relay

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The bus is device-local; browsers are not among its clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type frame struct {
	sender  *client
	payload []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Relay struct {
	// Connected bus clients.
	clients map[*client]bool

	// Inbound frames from the clients.
	broadcast chan frame

	// Register requests from the clients.
	register chan *client

	// Unregister requests from clients.
	unregister chan *client
}

func New() *Relay {
	return &Relay{
		broadcast:  make(chan frame),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
	}
}

func (r *Relay) Run() {
	for {
		select {
		case c := <-r.register:
			r.clients[c] = true
		case c := <-r.unregister:
			if _, ok := r.clients[c]; ok {
				delete(r.clients, c)
				close(c.send)
			}
		case f := <-r.broadcast:
			for c := range r.clients {
				if c == f.sender {
					continue
				}
				select {
				case c.send <- f.payload:
				default:
					close(c.send)
					delete(r.clients, c)
				}
			}
		}
	}
}

// ServeWS upgrades an HTTP request into a bus attachment.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("Bus upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	r.register <- c

	go c.writePump()
	go c.readPump(r)
}

func (c *client) readPump(r *Relay) {
	defer func() {
		r.unregister <- c
		c.conn.Close()
	}()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		r.broadcast <- frame{sender: c, payload: payload}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// Router builds the relay's HTTP surface.
func (r *Relay) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.HandleFunc("/bus", r.ServeWS)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
