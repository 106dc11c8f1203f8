package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/storage"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// PBX API
	PBXAPIURL     string
	PBXAPIToken   string
	PBXAPITimeout time.Duration

	// Polling intervals
	PollQueuesInterval time.Duration
	PollAgentsInterval time.Duration
	PollCallsInterval  time.Duration

	// Authentication
	SkipAuth      bool
	OIDCIssuerURL string

	// Preference storage
	Storage storage.Config

	// Per-view facet defaults, view -> facet -> option
	ViewsFile string
	Views     map[string]map[string]string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PBXAPIURL:      strings.TrimRight(getEnv("PBX_API_URL", "http://localhost:9090/api"), "/"),
		PBXAPIToken:    getEnv("PBX_API_TOKEN", ""),
		ViewsFile:      getEnv("VIEWS_FILE", ""),
		SkipAuth:       getEnv("SKIP_AUTH", "false") == "true",
		OIDCIssuerURL:  getEnv("OIDC_ISSUER_URL", ""),
		Storage:        storage.LoadConfig(),
	}

	var err error
	if config.WSReadTimeout, err = seconds("WS_READ_TIMEOUT", "60"); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = seconds("WS_WRITE_TIMEOUT", "10"); err != nil {
		return nil, err
	}
	if config.PBXAPITimeout, err = seconds("PBX_API_TIMEOUT", "10"); err != nil {
		return nil, err
	}
	if config.PollQueuesInterval, err = seconds("POLL_QUEUES_INTERVAL", "5"); err != nil {
		return nil, err
	}
	if config.PollAgentsInterval, err = seconds("POLL_AGENTS_INTERVAL", "10"); err != nil {
		return nil, err
	}
	if config.PollCallsInterval, err = seconds("POLL_CALLS_INTERVAL", "30"); err != nil {
		return nil, err
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	switch config.Storage.Backend {
	case storage.BackendMemory, storage.BackendSQLite, storage.BackendDynamoDB:
	default:
		return nil, fmt.Errorf("invalid PREFS_BACKEND: %q", config.Storage.Backend)
	}

	if config.ViewsFile != "" {
		views, err := LoadViews(config.ViewsFile)
		if err != nil {
			return nil, err
		}
		config.Views = views
	}

	return config, nil
}

// seconds parses a positive whole number of seconds
func seconds(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, n)
	}
	return time.Duration(n) * time.Second, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
