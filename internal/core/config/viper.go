package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// secretKeys may only come from the environment.
var secretKeys = []string{"redis.password", "database.password", "redis_password"}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	// Bind environment variables with RK_ prefix
	v.SetEnvPrefix("RK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		MaxConnections: v.GetInt("server.max_connections"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		DataDir:        v.GetString("server.data_dir"),
		MetricsAddr:    v.GetString("server.metrics_addr"),
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("redis.addr"),
			DB:   v.GetInt("redis.db"),
			TTL:  v.GetDuration("redis.ttl"),
		},
		Variables: VariablesConfig{
			File:     v.GetString("variables.file"),
			Watch:    v.GetBool("variables.watch"),
			Debounce: v.GetDuration("variables.debounce"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults mirrors DefaultServerConfig.
func setDefaults(v *viper.Viper) {
	d := DefaultServerConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.max_connections", d.MaxConnections)
	v.SetDefault("server.request_timeout", d.RequestTimeout.String())
	v.SetDefault("server.data_dir", d.DataDir)
	v.SetDefault("server.metrics_addr", d.MetricsAddr)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL.String())
	v.SetDefault("variables.file", d.Variables.File)
	v.SetDefault("variables.watch", d.Variables.Watch)
	v.SetDefault("variables.debounce", d.Variables.Debounce.String())
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// validateConfig checks port range, positive limits, known drivers and log settings.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	switch cfg.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	if cfg.Redis.Addr != "" && cfg.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be positive, got %v", cfg.Redis.TTL)
	}
	if cfg.Variables.Debounce < 0 {
		return fmt.Errorf("variables.debounce must not be negative, got %v", cfg.Variables.Debounce)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range secretKeys {
		if v.InConfig(key) {
			return fmt.Errorf("secrets not allowed in config files (%s; use RK_REDIS_PASSWORD environment variable)", key)
		}
	}
	return nil
}
