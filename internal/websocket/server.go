package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/arrival-board/internal/board"
	"github.com/yegors/arrival-board/internal/display"
	"github.com/yegors/arrival-board/pkg/logger"
)

// Message types
const (
	MessageTypeBoardUpdate  = "board_update"  // Server pushes the full board
	MessageTypeBoardRequest = "board_request" // Client asks for the current board
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server
}

// Server fans board updates out to every connected display.
// Only the Run goroutine writes to client send channels.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	requests   chan *Client
	broadcast  chan *Message
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logger.Logger

	loc *time.Location
	now func() time.Time

	mu     sync.RWMutex
	latest *Message
	count  int
}

// NewServer creates a hub that formats boards in loc
func NewServer(loc *time.Location, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		requests:   make(chan *Client),
		broadcast:  make(chan *Message, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Kiosk pages are served from anywhere on the LAN
			},
		},
		logger: log.Named("web-socket"),
		loc:    loc,
		now:    time.Now,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case client := <-s.register:
			s.clients[client] = true
			s.setCount(len(s.clients))
			s.logger.Debug("Client registered", logger.Int("client_count", len(s.clients)))
			if msg := s.Latest(); msg != nil {
				s.deliver(client, msg)
			}

		case client := <-s.unregister:
			s.drop(client)
			s.logger.Debug("Client unregistered", logger.Int("client_count", len(s.clients)))

		case client := <-s.requests:
			if msg := s.Latest(); msg != nil && s.clients[client] {
				s.deliver(client, msg)
			}

		case msg := <-s.broadcast:
			for client := range s.clients {
				s.deliver(client, msg)
			}

		case <-ctx.Done():
			for client := range s.clients {
				s.drop(client)
			}
			s.logger.Info("WebSocket server stopped")
			return
		}
	}
}

// deliver queues msg for client, dropping clients that cannot keep up
func (s *Server) deliver(client *Client, msg *Message) {
	select {
	case client.send <- msg:
	default:
		s.logger.Warn("Client send buffer full, disconnecting",
			logger.String("remote_addr", client.conn.RemoteAddr().String()))
		s.drop(client)
	}
}

func (s *Server) drop(client *Client) {
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
		s.setCount(len(s.clients))
	}
}

func (s *Server) setCount(n int) {
	s.mu.Lock()
	s.count = n
	s.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Latest returns the most recent board message, or nil before the first publish
func (s *Server) Latest() *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// PublishBoard formats view and broadcasts it. It never blocks the caller.
func (s *Server) PublishBoard(view board.View) {
	msg := &Message{
		Type: MessageTypeBoardUpdate,
		Data: display.NewDocument(view, s.now(), s.loc),
	}

	s.mu.Lock()
	s.latest = msg
	s.mu.Unlock()

	select {
	case s.broadcast <- msg:
	case <-s.done:
	default:
		// Clients still get the latest board on their next request
		s.logger.Warn("Broadcast queue full, dropping board update")
	}
}

// HandleConnection upgrades the request and registers the client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads client requests until the connection fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		switch msg.Type {
		case MessageTypeBoardRequest:
			select {
			case c.server.requests <- c:
			case <-c.server.done:
				return
			}
		default:
			c.server.logger.Debug("Ignoring WebSocket message", logger.String("type", msg.Type))
		}
	}
}

// writePump writes queued messages and keepalive pings
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
				c.server.logger.Debug("Failed to write message", logger.Error(err))
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
