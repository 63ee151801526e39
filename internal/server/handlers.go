// Package server exposes HTTP handlers: the WebSocket upgrade listener that
// feeds the relay engine and the health check served next to metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// Listener upgrades requests to WebSocket connections and runs one read and
// one write pump per connection.
type Listener struct {
	cfg        *Config
	dispatcher Dispatcher
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	wg         sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

// NewListener creates a Listener that reports connection events to dispatcher.
func NewListener(cfg *Config, dispatcher Dispatcher, logger *zap.Logger) *Listener {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	return &Listener{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// ServeHTTP handles a WebSocket upgrade request. It validates that the request
// uses the GET method, upgrades the connection, registers the new client with
// the relay and starts the client's pumps.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	// Both pumps are counted before the connection exists so Wait never
	// misses a client that is still being set up.
	if !l.track() {
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.wg.Add(-2)
		l.logger.Warn("WebSocket upgrade failed",
			zap.String("addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	client := NewClient(conn, l.dispatcher, r.RemoteAddr, l.cfg, l.logger)

	// Connected is queued before the read pump starts, so the engine always
	// sees it ahead of this client's messages.
	if err := l.dispatcher.Dispatch(relay.Event{Kind: relay.Connected, Peer: client}); err != nil {
		l.logger.Warn("relay rejected new connection", zap.String("addr", r.RemoteAddr), zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		l.wg.Add(-2)
		return
	}

	go func() {
		defer l.wg.Done()
		client.writePump()
	}()
	go func() {
		defer l.wg.Done()
		client.readPump()
	}()
}

// track reserves the two pump goroutines of a new connection. It fails once
// Wait has been called.
func (l *Listener) track() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closing {
		return false
	}
	l.wg.Add(2)
	return true
}

// Wait stops accepting upgrades and blocks until every pump goroutine has
// finished or timeout elapses.
func (l *Listener) Wait(timeout time.Duration) error {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("timed out waiting for connection goroutines", zap.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "relay server is running!")
}
