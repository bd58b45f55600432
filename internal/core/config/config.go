// Package config provides configuration management for rulekeeper services.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// ServerConfig holds configuration for the condition service.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	DataDir        string
	MetricsAddr    string

	Database  DatabaseConfig
	Redis     RedisConfig
	Variables VariablesConfig
	Log       LogConfig
}

// DatabaseConfig selects the node record store.
type DatabaseConfig struct {
	Driver string // "sqlite3" or "postgres"
	DSN    string // empty means <DataDir>/rulekeeper.db for sqlite3
}

// RedisConfig enables the read-through tree cache when Addr is set.
type RedisConfig struct {
	Addr string
	DB   int
	TTL  time.Duration
}

// VariablesConfig points at the engine variables file.
type VariablesConfig struct {
	File     string
	Watch    bool
	Debounce time.Duration
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           50051,
		MaxConnections: 1000,
		RequestTimeout: 30 * time.Second,
		DataDir:        "./data",
		MetricsAddr:    ":9090",
		Database: DatabaseConfig{
			Driver: "sqlite3",
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Variables: VariablesConfig{
			Watch:    true,
			Debounce: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DatabaseDSN returns the configured DSN, defaulting to a SQLite file under
// DataDir when none is set.
func (c *ServerConfig) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return filepath.Join(c.DataDir, "rulekeeper.db")
}

// RedisPassword reads the Redis password from RK_REDIS_PASSWORD.
// Secrets are environment-only; LoadConfig rejects them in files.
func RedisPassword() string {
	return os.Getenv("RK_REDIS_PASSWORD")
}
