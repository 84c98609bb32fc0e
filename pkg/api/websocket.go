package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsClient wraps one upgraded connection with a buffered outbound queue,
// so a slow reader can't block the hub's broadcast loop.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	room string
}

// WSHub fans out node/task status events to subscribed clients, grouped
// into rooms ("nodes", "tasks") so a client only receives the event
// classes it asked for.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	rooms   map[string]map[*wsClient]struct{}

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan roomMessage
}

type roomMessage struct {
	room string
	data []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewWSHub builds an idle hub; call Run in a goroutine to start it.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		rooms:      make(map[string]map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan roomMessage, 64),
	}
}

// Run drives the hub's register/unregister/broadcast loop until stop is
// closed.
func (h *WSHub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			if h.rooms[c.room] == nil {
				h.rooms[c.room] = make(map[*wsClient]struct{})
			}
			h.rooms[c.room][c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				delete(h.rooms[c.room], c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.rooms[msg.room] {
				select {
				case c.send <- msg.data:
				default: // slow client; drop rather than block the hub
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast publishes an event to every client subscribed to room.
func (h *WSHub) Broadcast(room string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast <- roomMessage{room: room, data: data}
}

// handleWebSocket upgrades the request and registers the connection in
// the room named by the "room" query parameter (defaults to "tasks").
func (s *Server) handleWebSocket(c *gin.Context) {
	room := c.DefaultQuery("room", "tasks")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 16), room: room}
	s.hub.register <- client

	go s.wsWriter(client)
	go s.wsReader(client)
}

func (s *Server) wsWriter(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// wsReader discards client input but watches for the connection closing
// so the hub can clean the client up promptly.
func (s *Server) wsReader(c *wsClient) {
	defer func() { s.hub.unregister <- c }()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
