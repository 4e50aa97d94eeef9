// Package eventstream bridges a registry's event feed to connected debug
// websocket clients. Grounded on the teacher's websocket/server.go and
// websocket/enhanced_server.go Hub/Client pattern, stripped of its log
// buffering and heartbeat payload shapes and re-pointed at
// pkg/registry.Event instead of the demo's AgentLog/WebSocketMessage
// types.
package eventstream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sage-x-project/sage/pkg/registry"
	"github.com/sage-x-project/sage/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Debug endpoint only; the caller decides whether to expose it.
		return true
	},
}

// Hub fans out broadcast messages to every registered Client.
type Hub struct {
	mu         sync.Mutex
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an idle Hub; call Run to start its dispatch loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run dispatches register/unregister/broadcast events until its channels
// are abandoned. Intended to run in its own goroutine for the lifetime of
// the server.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues data for delivery to every connected client. Never
// blocks: a full broadcast queue drops the message rather than stall the
// caller (the registry mutation that produced it must not wait on a slow
// debug consumer).
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
	}
}

// Client wraps one upgraded websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, 32)}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("eventstream: read error: %v", err)
			}
			return
		}
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// Server subscribes to a registry's event feed and republishes every event
// as JSON to connected debug websocket clients.
type Server struct {
	hub *Hub
	reg *registry.Registry
}

// NewServer creates a Server wired to reg and starts its hub dispatch loop
// and event pump goroutines.
func NewServer(reg *registry.Registry) *Server {
	s := &Server{hub: NewHub(), reg: reg}
	go s.hub.Run()
	go s.pump()
	return s
}

func (s *Server) pump() {
	sub := s.reg.Subscribe()
	defer s.reg.Unsubscribe(sub)
	for ev := range sub {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("eventstream: marshal event: %v", err)
			continue
		}
		s.hub.Broadcast(data)
	}
}

// HandleWebSocket upgrades r and registers the resulting connection with
// the hub. Mount at the debug websocket endpoint (e.g. /debug/events).
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("eventstream: upgrade failed: %v", err)
		return
	}
	client := NewClient(s.hub, conn)
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}
