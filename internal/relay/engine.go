package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const eventQueueSize = 256

// Engine owns the registry and applies the fan-out policy to transport events.
// Events are consumed by a single Run loop in the order they were dispatched.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
	metrics  Metrics

	events   chan Event
	quit     chan struct{}
	stopping chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	haltOnce sync.Once

	// mu orders Dispatch against halt: once stopped is set no event can
	// enter the queue.
	mu      sync.RWMutex
	stopped bool
}

// NewEngine creates an engine with an empty registry. logger and metrics may be nil.
func NewEngine(logger *zap.Logger, metrics Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{
		registry: NewRegistry(),
		logger:   logger,
		metrics:  metrics,
		events:   make(chan Event, eventQueueSize),
		quit:     make(chan struct{}),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Len returns the number of open peers.
func (e *Engine) Len() int {
	return e.registry.Len()
}

// Dispatch queues ev for the Run loop.
func (e *Engine) Dispatch(ev Event) error {
	if ev.Peer == nil {
		return fmt.Errorf("dispatch %s event: nil peer", ev.Kind)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrEngineStopped
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.stopping:
		return ErrEngineStopped
	}
}

// Run consumes dispatched events until ctx is cancelled or Shutdown is called.
// On exit every registered peer is closed. Run returns immediately if the
// engine is already running or has stopped.
func (e *Engine) Run(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		e.halt()
		close(e.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		case ev := <-e.events:
			e.Handle(ev)
		}
	}
}

// Handle applies a single event synchronously.
func (e *Engine) Handle(ev Event) {
	if ev.Peer == nil {
		e.logger.Warn("ignoring event without peer", zap.Stringer("kind", ev.Kind))
		return
	}
	switch ev.Kind {
	case Connected:
		e.OnConnect(ev.Peer)
	case MessageReceived:
		e.OnMessage(ev.Peer, ev.PayloadKind, ev.Payload)
	case Closed:
		e.OnClose(ev.Peer)
	default:
		e.logger.Warn("ignoring unknown event", zap.Stringer("kind", ev.Kind))
	}
}

// OnConnect registers a newly opened peer.
func (e *Engine) OnConnect(peer Peer) {
	if !e.registry.Add(peer) {
		e.logger.Warn("peer already registered", zap.Stringer("conn_id", peer.ID()))
		return
	}
	e.metrics.ConnectionOpened()
	e.logger.Info("new connection",
		zap.Stringer("conn_id", peer.ID()),
		zap.Int("connections", e.registry.Len()))
}

// OnMessage forwards a text payload, unmodified, to every peer except sender
// and returns how many peers accepted it. Non-text payloads and payloads from
// peers that are no longer registered are dropped.
func (e *Engine) OnMessage(sender Peer, kind PayloadKind, payload []byte) int {
	e.metrics.MessageReceived(kind)

	if kind != Text {
		e.metrics.MessageDropped("non_text")
		e.logger.Debug("discarding non-text frame",
			zap.Stringer("conn_id", sender.ID()),
			zap.Int("bytes", len(payload)))
		return 0
	}
	if !e.registry.Contains(sender.ID()) {
		e.metrics.MessageDropped("unregistered_sender")
		e.logger.Debug("discarding message from unregistered peer", zap.Stringer("conn_id", sender.ID()))
		return 0
	}

	e.logger.Debug("<-", zap.Stringer("conn_id", sender.ID()), zap.ByteString("payload", payload))

	delivered := 0
	e.registry.ForEachExcept(sender.ID(), func(peer Peer) {
		if e.safeSend(peer, payload) {
			delivered++
		}
	})
	e.metrics.Delivered(delivered)
	return delivered
}

// safeSend isolates a single peer's failure from the rest of the fan-out.
func (e *Engine) safeSend(peer Peer, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.SendFailed()
			e.logger.Error("recovered from panic sending to peer",
				zap.Stringer("conn_id", peer.ID()),
				zap.Any("panic", r))
			ok = false
		}
	}()

	if err := peer.Send(payload); err != nil {
		e.metrics.SendFailed()
		e.logger.Warn("send to peer failed",
			zap.Stringer("conn_id", peer.ID()),
			zap.Error(err))
		return false
	}
	e.logger.Debug("->", zap.Stringer("conn_id", peer.ID()), zap.ByteString("payload", payload))
	return true
}

// OnClose removes peer from the registry and closes it. Repeated calls are no-ops.
func (e *Engine) OnClose(peer Peer) {
	removed := e.registry.Remove(peer.ID())
	peer.Close()
	if !removed {
		return
	}
	e.metrics.ConnectionClosed()
	e.logger.Info("discarding connection",
		zap.Stringer("conn_id", peer.ID()),
		zap.Int("connections", e.registry.Len()))
}

func (e *Engine) closeAll() {
	peers := e.registry.Drain()
	for _, peer := range peers {
		peer.Close()
		e.metrics.ConnectionClosed()
	}
	e.logger.Info("closed all connections", zap.Int("count", len(peers)))
}

// halt rejects further dispatches, closes every registered peer and closes
// peers whose Connected event is still queued.
func (e *Engine) halt() {
	e.haltOnce.Do(func() {
		close(e.stopping)
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()

		e.closeAll()
		e.discardPending()
	})
}

func (e *Engine) discardPending() {
	for {
		select {
		case ev := <-e.events:
			if ev.Kind == Connected {
				ev.Peer.Close()
			}
		default:
			return
		}
	}
}

// Shutdown stops the Run loop, closes every registered peer and waits up to
// timeout for the loop to exit.
func (e *Engine) Shutdown(timeout time.Duration) error {
	e.logger.Info("initiating relay shutdown")
	e.stopOnce.Do(func() { close(e.quit) })

	if !e.started.Load() {
		// Run never started: mark the engine stopped so Run becomes a no-op.
		if e.started.CompareAndSwap(false, true) {
			e.halt()
			close(e.done)
			return nil
		}
	}

	select {
	case <-e.done:
		e.logger.Info("relay shutdown completed")
		return nil
	case <-time.After(timeout):
		e.logger.Warn("relay shutdown timeout reached", zap.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}
