package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quizchat/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var ErrHubClosed = errors.New("hub is closed")

// Message is the outbound envelope written to every socket.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// InboundMessage is the envelope read from a socket. The payload is decoded
// by the handler once the type is known.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeMessage(eventType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: eventType, Payload: payload})
}

// MessageHandler receives every decoded inbound message and is told when a
// connection goes away.
type MessageHandler interface {
	HandleMessage(ctx context.Context, c *Client, msg InboundMessage)
	Disconnect(c *Client)
}

// Hub tracks live websocket connections. Session state lives in a single
// process; running several replicas would need a shared registry.
type Hub struct {
	handler    MessageHandler
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(handler MessageHandler, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		handler:    handler,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run owns the client set until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	defer h.cancel()
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return nil

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("client connected", "client", client.id, "total", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("client disconnected", "client", client.id, "total", total)
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Attach registers a freshly upgraded socket and starts its pumps. verified is
// the identity proven by a token at upgrade time, if any.
func (h *Hub) Attach(conn *websocket.Conn, verified *models.Identity) (*Client, error) {
	client := newClient(h, conn, verified)
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}

	go client.writePump()
	go client.readPump()

	return client, nil
}

// Client is one websocket connection. A closed client accepts no further
// messages.
type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte

	mu       sync.RWMutex
	closed   bool
	identity *models.Identity
	verified *models.Identity
}

func newClient(hub *Hub, conn *websocket.Conn, verified *models.Identity) *Client {
	return &Client{
		hub:      hub,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, sendBufferSize),
		verified: verified,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Identity returns the identity bound by a successful register.
func (c *Client) Identity() (models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return models.Identity{}, false
	}
	return *c.identity, true
}

func (c *Client) setIdentity(id models.Identity) {
	c.mu.Lock()
	c.identity = &id
	c.mu.Unlock()
}

func (c *Client) setDisplayName(name string) {
	c.mu.Lock()
	if c.identity != nil {
		c.identity.DisplayName = name
	}
	c.mu.Unlock()
}

// Verified returns the token-backed identity, if the connection presented one.
func (c *Client) Verified() (models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.verified == nil {
		return models.Identity{}, false
	}
	return *c.verified, true
}

func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Send queues raw bytes. A full buffer means the peer is not keeping up and
// the connection is closed.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closeLocked()
		return false
	}
}

// Emit encodes and queues one event.
func (c *Client) Emit(eventType string, payload interface{}) bool {
	data, err := encodeMessage(eventType, payload)
	if err != nil {
		return false
	}
	return c.Send(data)
}

// CloseWith queues a final event and closes the connection in one step, so
// nothing can be delivered after it.
func (c *Client) CloseWith(eventType string, payload interface{}) {
	data, _ := encodeMessage(eventType, payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if data != nil {
		select {
		case c.send <- data:
		default:
		}
	}
	c.closeLocked()
}

func (c *Client) Close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.handler.Disconnect(c)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "client", c.id, "error", err)
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Emit(EventError, ErrorPayload{Message: "malformed message"})
			continue
		}

		c.hub.handler.HandleMessage(c.hub.ctx, c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
