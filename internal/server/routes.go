// Package server wires HTTP handlers into ServeMuxes via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// SetupRoutes returns the relay port's mux. Every WebSocket upgrade request,
// on any path, goes to relayHandler; everything else goes to staticHandler.
func SetupRoutes(relayHandler, staticHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			relayHandler.ServeHTTP(w, r)
			return
		}
		staticHandler.ServeHTTP(w, r)
	}))
	return mux
}

// SetupMetricsRoutes returns the mux for the optional metrics listener.
func SetupMetricsRoutes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	return mux
}
