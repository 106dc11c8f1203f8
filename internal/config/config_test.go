package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/storage"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
				if cfg.PollQueuesInterval != 5*time.Second {
					t.Errorf("expected PollQueuesInterval 5s, got %v", cfg.PollQueuesInterval)
				}
				if cfg.PollCallsInterval != 30*time.Second {
					t.Errorf("expected PollCallsInterval 30s, got %v", cfg.PollCallsInterval)
				}
				if cfg.PBXAPITimeout != 10*time.Second {
					t.Errorf("expected PBXAPITimeout 10s, got %v", cfg.PBXAPITimeout)
				}
				if cfg.Storage.Backend != storage.BackendMemory {
					t.Errorf("expected memory backend, got %s", cfg.Storage.Backend)
				}
				if cfg.SkipAuth {
					t.Error("expected SkipAuth to default to false")
				}
				if cfg.Views != nil {
					t.Errorf("expected no view overrides, got %v", cfg.Views)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                 "9000",
				"LOG_LEVEL":            "debug",
				"WS_READ_TIMEOUT":      "30",
				"WS_WRITE_TIMEOUT":     "5",
				"ALLOWED_ORIGINS":      "http://example.com,http://test.com",
				"PBX_API_URL":          "http://pbx.local/api/",
				"PBX_API_TOKEN":        "token",
				"POLL_AGENTS_INTERVAL": "15",
				"PREFS_BACKEND":        "sqlite",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("expected log level debug, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 30*time.Second {
					t.Errorf("expected WSReadTimeout 30s, got %v", cfg.WSReadTimeout)
				}
				if cfg.WSWriteTimeout != 5*time.Second {
					t.Errorf("expected WSWriteTimeout 5s, got %v", cfg.WSWriteTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
				if cfg.PBXAPIURL != "http://pbx.local/api" {
					t.Errorf("expected trailing slash trimmed, got %s", cfg.PBXAPIURL)
				}
				if cfg.PBXAPIToken != "token" {
					t.Errorf("expected token, got %s", cfg.PBXAPIToken)
				}
				if cfg.PollAgentsInterval != 15*time.Second {
					t.Errorf("expected PollAgentsInterval 15s, got %v", cfg.PollAgentsInterval)
				}
				if cfg.Storage.Backend != storage.BackendSQLite {
					t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
				}
			},
		},
		{
			name: "invalid WS_READ_TIMEOUT",
			env: map[string]string{
				"WS_READ_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid WS_WRITE_TIMEOUT",
			env: map[string]string{
				"WS_WRITE_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "zero poll interval",
			env: map[string]string{
				"POLL_QUEUES_INTERVAL": "0",
			},
			wantErr: true,
		},
		{
			name: "unknown preference backend",
			env: map[string]string{
				"PREFS_BACKEND": "redis",
			},
			wantErr: true,
		},
		{
			name: "missing views file",
			env: map[string]string{
				"VIEWS_FILE": "/nonexistent/views.yaml",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	// Clear environment and set clean defaults
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// PongWait should equal WSReadTimeout
	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}

	// PingPeriod should be less than PongWait
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}

	// WriteWait should equal WSWriteTimeout
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}

	// MaxMessageSize should be set
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}

func TestLoadViewsFile(t *testing.T) {
	os.Clearenv()

	path := filepath.Join(t.TempDir(), "views.yaml")
	content := "views:\n  queues:\n    status: waiting\n  agents:\n    sort-by: calls_taken\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write views file: %v", err)
	}
	os.Setenv("VIEWS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Views["queues"]["status"] != "waiting" {
		t.Errorf("expected queues status default waiting, got %v", cfg.Views["queues"])
	}
	if cfg.Views["agents"]["sort-by"] != "calls_taken" {
		t.Errorf("expected agents sort-by calls_taken, got %v", cfg.Views["agents"])
	}
}

func TestLoadViewsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	if err := os.WriteFile(path, []byte("views: [unclosed"), 0o600); err != nil {
		t.Fatalf("failed to write views file: %v", err)
	}

	if _, err := LoadViews(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
