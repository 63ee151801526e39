package server

import (
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Addr() != ":8000" {
		t.Errorf("Expected default addr :8000, got %s", cfg.Addr())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.StaticDir != "." {
		t.Errorf("Expected default static dir '.', got %s", cfg.StaticDir)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("Expected default origins [*], got %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1<<20 {
		t.Errorf("Expected default max message size 1MiB, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendQueueSize != 256 {
		t.Errorf("Expected default send queue size 256, got %d", cfg.SendQueueSize)
	}
	if cfg.KeepAlive.Interval != 20*time.Second || cfg.KeepAlive.Grace != 10*time.Second {
		t.Errorf("Unexpected keepalive defaults: %+v", cfg.KeepAlive)
	}
	if cfg.PongWait() != 30*time.Second {
		t.Errorf("Expected pong wait 30s, got %s", cfg.PongWait())
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("Expected metrics listener disabled by default, got %q", cfg.MetricsAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9123")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("KEEPALIVE_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9123" {
		t.Errorf("Expected addr 127.0.0.1:9123, got %s", cfg.Addr())
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.PongWait() != 0 {
		t.Errorf("Expected keepalive disabled, got pong wait %s", cfg.PongWait())
	}
}

func TestLoadFromValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "non-numeric port",
			env:     map[string]string{"PORT": "http"},
			wantErr: "invalid port",
		},
		{
			name:    "port out of range",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "invalid port",
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "invalid log level",
		},
		{
			name:    "zero send queue",
			env:     map[string]string{"SEND_QUEUE_SIZE": "0"},
			wantErr: "send queue size",
		},
		{
			name:    "negative keepalive",
			env:     map[string]string{"KEEPALIVE_INTERVAL": "-1s"},
			wantErr: "keepalive",
		},
		{
			name:    "unparseable duration",
			env:     map[string]string{"WRITE_TIMEOUT": "soon"},
			wantErr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		logger, err := NewLogger(level)
		if err != nil {
			t.Fatalf("NewLogger(%q) returned error: %v", level, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%q) returned nil logger", level)
		}
	}
}
