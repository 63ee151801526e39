package server

import (
	"errors"
	"testing"
	"time"

	"github.com/Tyrowin/gorelay/internal/relay"
)

func TestNewClient(t *testing.T) {
	client := NewClient(nil, nil, "127.0.0.1:12345", nil, nil)

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.send == nil {
		t.Error("Client send channel is nil")
	}
	if client.Addr() != "127.0.0.1:12345" {
		t.Errorf("Expected addr 127.0.0.1:12345, got %s", client.Addr())
	}

	other := NewClient(nil, nil, "127.0.0.1:12345", nil, nil)
	if client.ID() == other.ID() {
		t.Error("Two clients from the same address share an ID")
	}
}

func TestClientSendQueuesPayload(t *testing.T) {
	client := NewClient(nil, nil, "127.0.0.1:12345", nil, nil)

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	select {
	case msg := <-client.send:
		if string(msg) != "hello" {
			t.Errorf("Expected queued %q, got %q", "hello", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Expected message in send channel")
	}
}

func TestClientSendQueueFull(t *testing.T) {
	cfg := NewConfig()
	cfg.SendQueueSize = 2
	client := NewClient(nil, nil, "127.0.0.1:12345", cfg, nil)

	for i := 0; i < 2; i++ {
		if err := client.Send([]byte("fill")); err != nil {
			t.Fatalf("Send %d returned error: %v", i, err)
		}
	}
	if err := client.Send([]byte("overflow")); !errors.Is(err, ErrSendQueueFull) {
		t.Errorf("Expected ErrSendQueueFull, got %v", err)
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := NewClient(nil, nil, "127.0.0.1:12345", nil, nil)

	client.Close()
	client.Close()

	if err := client.Send([]byte("late")); !errors.Is(err, relay.ErrPeerClosed) {
		t.Errorf("Expected ErrPeerClosed after Close, got %v", err)
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}
}

func TestClientImplementsPeer(t *testing.T) {
	var _ relay.Peer = NewClient(nil, nil, "", nil, nil)
}

func TestPayloadKind(t *testing.T) {
	if payloadKind(1) != relay.Text {
		t.Error("Text frames must map to relay.Text")
	}
	if payloadKind(2) != relay.Binary {
		t.Error("Binary frames must map to relay.Binary")
	}
}
