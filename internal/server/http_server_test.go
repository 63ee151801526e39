package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/gorelay/internal/server"
	"github.com/Tyrowin/gorelay/internal/testhelpers"
)

// TestCreateServer verifies that CreateServer returns an HTTP server with the
// correct address, handler and timeout settings.
func TestCreateServer(t *testing.T) {
	addr := ":8000"
	mux := http.NewServeMux()

	srv := server.CreateServer(addr, mux)

	if srv.Addr != addr {
		t.Errorf("Expected server addr %s, got %s", addr, srv.Addr)
	}
	if srv.Handler != mux {
		t.Error("Server handler not set correctly")
	}
	if srv.ReadTimeout != 15*time.Second {
		t.Errorf("Expected ReadTimeout 15s, got %v", srv.ReadTimeout)
	}
	if srv.WriteTimeout != 15*time.Second {
		t.Errorf("Expected WriteTimeout 15s, got %v", srv.WriteTimeout)
	}
	if srv.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout 60s, got %v", srv.IdleTimeout)
	}
}

// TestListenFailsOnBusyPort verifies the fail-closed startup path.
func TestListenFailsOnBusyPort(t *testing.T) {
	ln, err := server.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to bind ephemeral port: %v", err)
	}
	defer func() { _ = ln.Close() }()

	if _, err := server.Listen(ln.Addr().String()); err == nil {
		t.Error("Expected error binding an occupied port")
	}
}

func TestStartAndShutdownServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ln, err := server.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to bind ephemeral port: %v", err)
	}

	srv := server.CreateServer(ln.Addr().String(), http.HandlerFunc(server.HealthHandler))
	served := make(chan error, 1)
	go func() { served <- server.StartServer(srv, ln, logger) }()

	resp := testhelpers.MakeRequest(t, http.MethodGet, "http://"+ln.Addr().String()+"/")
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	if err := server.ShutdownServer(srv, time.Second, logger); err != nil {
		t.Fatalf("ShutdownServer returned error: %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("StartServer returned %v after clean shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("StartServer did not return after shutdown")
	}
}

// TestSetupRoutesMultiplexesUpgrade verifies that upgrade requests reach the
// relay handler on any path and everything else reaches the static handler.
func TestSetupRoutesMultiplexesUpgrade(t *testing.T) {
	relayHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "relay")
	})
	staticHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "static")
	})
	mux := server.SetupRoutes(relayHandler, staticHandler)

	tests := []struct {
		name    string
		path    string
		upgrade bool
		want    string
	}{
		{"plain request to root", "/", false, "static"},
		{"plain request to path", "/client", false, "static"},
		{"upgrade on root", "/", true, "relay"},
		{"upgrade on arbitrary path", "/any/path", true, "relay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Body.String() != tt.want {
				t.Errorf("Expected %q handler, got %q", tt.want, rr.Body.String())
			}
		})
	}
}

func TestSetupMetricsRoutes(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "metrics")
	})
	srv := httptest.NewServer(server.SetupMetricsRoutes(metricsHandler))
	defer srv.Close()

	resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/healthz")
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/plain")

	resp = testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/metrics")
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "metrics" {
		t.Errorf("Expected metrics handler output, got %q", body)
	}
}

// TestListenerRejectsNonGET verifies the listener's method check.
func TestListenerRejectsNonGET(t *testing.T) {
	listener := server.NewListener(nil, nil, nil)

	for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/", nil)
			rr := httptest.NewRecorder()
			listener.ServeHTTP(rr, req)

			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
			}
		})
	}
}

// TestListenerGETWithoutUpgrade verifies gorilla rejects a plain GET.
func TestListenerGETWithoutUpgrade(t *testing.T) {
	listener := server.NewListener(nil, nil, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	listener.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

// TestListenerRefusesUpgradesAfterWait verifies no new connection is tracked
// once shutdown has started waiting on the pumps.
func TestListenerRefusesUpgradesAfterWait(t *testing.T) {
	listener := server.NewListener(nil, nil, zaptest.NewLogger(t))

	if err := listener.Wait(time.Second); err != nil {
		t.Fatalf("Wait with no connections returned %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rr := httptest.NewRecorder()
	listener.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}
