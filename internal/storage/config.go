package storage

import "os"

// Backend selects where preference blobs are persisted
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendDynamoDB Backend = "dynamodb"
)

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
)

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode     DynamoMode
	Endpoint string // for local mode
	Region   string
	Table    string
}

// Config holds the storage configuration
type Config struct {
	Backend    Backend
	SQLitePath string
	Dynamo     DynamoConfig
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	backend := Backend(getEnv("PREFS_BACKEND", string(BackendMemory)))

	mode := DynamoMode(getEnv("DYNAMO_MODE", string(DynamoModeLocal)))
	if mode != DynamoModeAWS {
		mode = DynamoModeLocal
	}

	return Config{
		Backend:    backend,
		SQLitePath: getEnv("PREFS_SQLITE_PATH", "qmconsole.sqlite"),
		Dynamo: DynamoConfig{
			Mode:     mode,
			Endpoint: getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:   getEnv("DYNAMO_REGION", "eu-central-1"),
			Table:    getEnv("DYNAMO_PREFS_TABLE", "qmconsole-preferences"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
