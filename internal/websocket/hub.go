package websocket

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and binds each connection to its
// session.
type Hub struct {
	// Registered clients keyed by connection ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	registry *usecase.SessionRegistry

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(registry *usecase.SessionRegistry, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   registry,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.connID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("connID", client.connID),
				zap.String("agentID", client.agentID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.connID]; ok {
				delete(h.clients, client.connID)
				client.closeSend()
			}
			h.mu.Unlock()
			h.registry.Remove(client.connID)
			h.logger.Info("Client unregistered",
				zap.String("connID", client.connID))
		}
	}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and a session.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	connID  string
	agentID string

	session *usecase.Session

	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Ensure Client can serve as a session emitter.
var _ usecase.Emitter = (*Client)(nil)

// HandleWebSocket handles an authenticated websocket request, allocating
// the session for the connection's lifetime.
func HandleWebSocket(hub *Hub, c echo.Context, agentID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, 256),
		connID:  uuid.NewString(),
		agentID: agentID,
		logger:  logger,
	}

	client.hub.register <- client
	client.session = hub.registry.Create(client.connID, agentID, client)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// Emit implements usecase.Emitter: events from the session are queued for
// the write pump. Emits racing a teardown are dropped.
func (c *Client) Emit(event string, payload interface{}) {
	data, err := MarshalEvent(event, payload)
	if err != nil {
		c.logger.Error("Failed to marshal outbound event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: data}:
	default:
		c.logger.Warn("Dropping outbound event, send buffer full",
			zap.String("event", event))
	}
}

// closeSend shuts the outbound queue exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps messages from the websocket connection to the session.
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
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Binary frames are raw audio, no envelope.
			c.session.PushAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processMessage dispatches one inbound control event to the session.
func (c *Client) processMessage(message []byte) {
	msg, err := ParseInbound(message)
	if err != nil {
		c.logger.Warn("Rejected inbound message", zap.Error(err))
		c.Emit(usecase.EventError, usecase.ErrorPayload{Message: err.Error()})
		return
	}

	switch msg.Type {
	case EventStartListening:
		c.session.StartListening(msg.Script)
	case EventStopListening:
		c.session.StopListening()
	case EventAudioData:
		audio, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			c.logger.Warn("Failed to decode audio data", zap.Error(err))
			c.Emit(usecase.EventError, usecase.ErrorPayload{Message: "invalid audio encoding"})
			return
		}
		c.session.PushAudio(audio)
	case EventPauseRecognition:
		c.session.Pause()
	case EventResumeRecognition:
		c.session.Resume()
	case EventTextInput:
		c.session.HandleTextInput(msg.Text)
	}
}
