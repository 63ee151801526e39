// Package server implements the HTTP and WebSocket side of the relay.
//
// A single port multiplexes two protocols: WebSocket upgrade requests are
// handed to the Listener, which turns each connection into a Client feeding
// events to the relay engine, and every other request is answered by the
// StaticResponder. The implementation is organized into specialized files for
// configuration, clients, routing and HTTP handlers.
package server
