package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FrameType defines the type of a websocket frame
type FrameType string

const (
	// Client to server
	FrameTypePing FrameType = "ping"
	FrameTypeSync FrameType = "sync"

	// Server to client
	FrameTypePong  FrameType = "pong"
	FrameTypeState FrameType = "state"
	FrameTypeEvent FrameType = "event"
	FrameTypeError FrameType = "error"
)

// Frame is one websocket message
type Frame struct {
	Type      FrameType `json:"type"`
	ID        string    `json:"id,omitempty"`
	Event     *Event    `json:"event,omitempty"`
	State     *State    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan Frame
	hub  *Hub
}

// Hub fans session events out to connected websocket clients
type Hub struct {
	clients    map[string]*Client
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	state      func() State
	logger     *zap.Logger
	metrics    *metrics.Metrics
	mu         sync.RWMutex
}

// NewHub creates a hub. state produces the snapshot sent to clients on
// connect and on request.
func NewHub(state func() State, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan Frame, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		state:      state,
		logger:     logger,
		metrics:    m,
	}
}

// Attach forwards every event of the session to the hub's clients until the
// returned function is called
func (h *Hub) Attach(s *Session) func() {
	return s.Subscribe(func(e Event) {
		event := e
		h.Broadcast(Frame{Type: FrameTypeEvent, Event: &event, Timestamp: time.Now()})
	})
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
				h.metrics.WebsocketDisconnected()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.metrics.WebsocketConnected()
			h.logger.Info("ws_client_connected", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				h.metrics.WebsocketDisconnected()
				h.logger.Info("ws_client_disconnected", zap.String("client_id", client.ID))
			}
			h.mu.Unlock()

		case frame := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow consumer
					close(client.send)
					delete(h.clients, id)
					h.metrics.WebsocketDisconnected()
					h.logger.Warn("ws_client_dropped", zap.String("client_id", id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// ServeWS upgrades the request and starts the client's pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws_upgrade_failed", zap.Error(err))
		return
	}

	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &Client{
		ID:   clientID,
		conn: conn,
		send: make(chan Frame, sendBuffer),
		hub:  h,
	}
	client.send <- h.stateFrame("")

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Broadcast queues a frame for every connected client. Frames are dropped
// when the hub is saturated.
func (h *Hub) Broadcast(frame Frame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("ws_broadcast_dropped", zap.String("type", string(frame.Type)))
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) stateFrame(id string) Frame {
	frame := Frame{Type: FrameTypeState, ID: id, Timestamp: time.Now()}
	if h.state != nil {
		state := h.state()
		frame.State = &state
	}
	return frame
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("ws_read_failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var reply Frame
		switch frame.Type {
		case FrameTypePing:
			reply = Frame{Type: FrameTypePong, ID: frame.ID, Timestamp: time.Now()}
		case FrameTypeSync:
			reply = c.hub.stateFrame(frame.ID)
		default:
			reply = Frame{Type: FrameTypeError, ID: frame.ID, Error: "unsupported frame type: " + string(frame.Type), Timestamp: time.Now()}
		}
		if err := c.hub.sendTo(c.ID, reply); err != nil {
			return
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendTo queues a frame for one client. The hub lock keeps the send from
// racing with the channel being closed.
func (h *Hub) sendTo(clientID string, frame Frame) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return websocket.ErrCloseSent
	}

	select {
	case client.send <- frame:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}
