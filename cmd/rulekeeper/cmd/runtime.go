package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/core/metrics"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/rules"
)

// runtime bundles what every subcommand builds from configuration.
type runtime struct {
	cfg     *config.ServerConfig
	logger  *zap.Logger
	db      *sqlx.DB
	closers []io.Closer
}

// loadRuntime loads config, applies persistent flag overrides and builds the
// logger.
func loadRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dbURL != "" {
		driver, dsn, err := db.ParseURL(dbURL)
		if err != nil {
			return nil, err
		}
		cfg.Database.Driver = driver
		cfg.Database.DSN = dsn
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger}, nil
}

// openDB connects to the configured database.
func (rt *runtime) openDB(ctx context.Context) (*sqlx.DB, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	database, err := db.Open(ctx, rt.cfg.Database.Driver, rt.cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	rt.db = database
	rt.closers = append(rt.closers, database)
	return database, nil
}

// openStore returns the SQL store, wrapped in the Redis cache when
// configured. Migrations must already be applied.
func (rt *runtime) openStore(ctx context.Context, m *metrics.Metrics) (store.NodeStore, error) {
	database, err := rt.openDB(ctx)
	if err != nil {
		return nil, err
	}

	status, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range status {
		if !s.Applied {
			return nil, fmt.Errorf("migration %s not applied - run 'rulekeeper migrate up' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	var st store.NodeStore = store.NewSQLStore(queries)
	if rt.cfg.Redis.Addr == "" {
		return st, nil
	}

	client, err := store.NewRedisClient(ctx, rt.cfg.Redis.Addr, config.RedisPassword(), rt.cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, client)
	rt.logger.Info("Redis tree cache enabled",
		zap.String("addr", rt.cfg.Redis.Addr),
		zap.Duration("ttl", rt.cfg.Redis.TTL),
	)
	return store.NewCachedStore(st, client, rt.cfg.Redis.TTL, rt.logger, m), nil
}

// newEngine loads the variables file into a fresh engine.
func (rt *runtime) newEngine() (*rules.Engine, error) {
	variables, err := config.LoadVariables(rt.cfg.Variables.File)
	if err != nil {
		return nil, err
	}
	cfg, err := rules.NewConfig(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine config: %w", err)
	}
	return rules.NewEngine(cfg), nil
}

// newService wires store and engine into a condition service.
func (rt *runtime) newService(ctx context.Context, m *metrics.Metrics) (*api.ConditionService, error) {
	st, err := rt.openStore(ctx, m)
	if err != nil {
		return nil, err
	}
	engine, err := rt.newEngine()
	if err != nil {
		return nil, err
	}
	return api.NewConditionService(st, engine,
		api.WithLogger(rt.logger),
		api.WithMetrics(m),
		api.WithCacheTTL(rt.cfg.Redis.TTL),
	)
}

// Close releases connections in reverse order and flushes the logger.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i].Close()
	}
	rt.logger.Sync()
}
