// Package server manages individual WebSocket clients, handling read/write
// pumps and lifecycle control for each relay connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// ErrSendQueueFull is returned by Send when the client's outbound queue has
// no room; the message is dropped for this client only.
var ErrSendQueueFull = errors.New("server: send queue full")

// Dispatcher accepts transport events for the relay engine.
type Dispatcher interface {
	Dispatch(ev relay.Event) error
}

// Client represents a WebSocket connection in the relay. It implements
// relay.Peer: Send enqueues onto a buffered channel drained by the write pump.
type Client struct {
	id         relay.ConnID
	conn       *websocket.Conn
	send       chan []byte
	dispatcher Dispatcher
	addr       string
	logger     *zap.Logger

	writeTimeout time.Duration
	pingInterval time.Duration
	pongWait     time.Duration

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new Client instance with the provided WebSocket connection,
// dispatcher and client address. conn may be nil in tests that never start the pumps.
func NewClient(conn *websocket.Conn, dispatcher Dispatcher, addr string, cfg *Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := relay.NewConnID()
	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, cfg.SendQueueSize),
		dispatcher:   dispatcher,
		addr:         addr,
		logger:       logger.With(zap.Stringer("conn_id", id), zap.String("addr", addr)),
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.KeepAlive.Interval,
		pongWait:     cfg.PongWait(),
	}
}

// ID returns the client's connection identifier.
func (c *Client) ID() relay.ConnID {
	return c.id
}

// Addr returns the remote address the client connected from.
func (c *Client) Addr() string {
	return c.addr
}

// Send queues payload for delivery without blocking.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return relay.ErrPeerClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops outbound delivery. The write pump sends a close frame once the
// queue is drained and tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and the pong handler.
// With keep-alive disabled any deadline left over from the HTTP server is cleared.
func (c *Client) setupReadConnection() {
	if c.pongWait <= 0 {
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			c.logger.Warn("error clearing read deadline", zap.Error(err))
		}
		return
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// handleReadError logs the reason the read loop is ending.
func (c *Client) handleReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.logger.Info("message exceeded maximum size", zap.Error(err))
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		c.logger.Info("client disconnected", zap.Error(err))
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.logger.Info("client connection closed", zap.Error(err))
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.logger.Warn("unexpected WebSocket close", zap.Error(err))
		return
	}

	c.logger.Warn("WebSocket read error", zap.Error(err))
}

func (c *Client) readPump() {
	defer func() {
		c.dispatchClose()
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		ev := relay.Event{
			Kind:        relay.MessageReceived,
			Peer:        c,
			PayloadKind: payloadKind(messageType),
			Payload:     payload,
		}
		if err := c.dispatcher.Dispatch(ev); err != nil {
			c.logger.Debug("relay not accepting messages", zap.Error(err))
			return
		}
	}
}

// dispatchClose reports closure to the engine. If the engine is gone the
// client closes itself so the write pump still exits.
func (c *Client) dispatchClose() {
	if err := c.dispatcher.Dispatch(relay.Event{Kind: relay.Closed, Peer: c}); err != nil {
		c.Close()
	}
}

func (c *Client) writePump() {
	var tick <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.closeConnection()

	for c.processWriteEvent(tick) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(tick <-chan time.Time) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-tick:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection", zap.Error(err))
		}
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.logger.Warn("error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close frame to the client.
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Debug("error writing close message", zap.Error(err))
		}
	}
	return false
}

// writeTextMessage writes message as a single text frame.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.logger.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing ping message", zap.Error(err))
		}
		return false
	}
	return true
}
