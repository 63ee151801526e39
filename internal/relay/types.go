// Package relay defines the connection registry and the event-driven engine
// that fans text messages out to every other connected peer.
package relay

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrEngineStopped is returned by Dispatch once the engine loop has exited.
	ErrEngineStopped = errors.New("relay: engine stopped")

	// ErrPeerClosed is returned by a Peer's Send after the peer has been closed.
	ErrPeerClosed = errors.New("relay: peer closed")
)

// ConnID identifies a single relay connection for the lifetime of the process.
type ConnID = uuid.UUID

// NewConnID returns a fresh random connection identifier.
func NewConnID() ConnID {
	return uuid.New()
}

// Peer is one side of a persistent relay connection as seen by the engine.
//
// Send must not block: implementations enqueue the payload for asynchronous
// delivery and report an error when that is not possible. Close must be
// idempotent.
type Peer interface {
	ID() ConnID
	Send(payload []byte) error
	Close()
}

// EventKind enumerates the transport events the engine reacts to.
type EventKind int

const (
	// Connected is emitted once the transport upgrade has completed.
	Connected EventKind = iota
	// MessageReceived is emitted for every inbound frame, in arrival order.
	MessageReceived
	// Closed is emitted when the transport reports closure or an error.
	Closed
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case MessageReceived:
		return "message"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// PayloadKind tells text frames apart from everything else.
type PayloadKind int

const (
	// Text payloads are forwarded.
	Text PayloadKind = iota
	// Binary payloads are accepted by the transport and dropped by the engine.
	Binary
)

func (k PayloadKind) String() string {
	if k == Text {
		return "text"
	}
	return "binary"
}

// Event is a single transport notification for one peer.
type Event struct {
	Kind        EventKind
	Peer        Peer
	PayloadKind PayloadKind
	Payload     []byte
}

// Metrics receives relay counters. A nil Metrics is replaced with a no-op.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageReceived(kind PayloadKind)
	MessageDropped(reason string)
	Delivered(n int)
	SendFailed()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed() {}
func (nopMetrics) MessageReceived(PayloadKind) {}
func (nopMetrics) MessageDropped(string) {}
func (nopMetrics) Delivered(int) {}
func (nopMetrics) SendFailed() {}
