// Package server defines shared utility helpers reused across client and
// listener logic.
package server

import (
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// payloadKind maps a gorilla frame type onto the relay's text/non-text split.
func payloadKind(messageType int) relay.PayloadKind {
	if messageType == websocket.TextMessage {
		return relay.Text
	}
	return relay.Binary
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
