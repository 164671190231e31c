package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"token-alert-bot/config"
	"token-alert-bot/internal/database"
	"token-alert-bot/internal/kv"
	"token-alert-bot/internal/metrics"
	"token-alert-bot/internal/store"
)

// openBackend opens the store selected by db_driver. Only the SQL drivers also persist
// bot counters, so saver is nil for the others.
func openBackend(ctx context.Context) (store.Backend, metrics.Saver, error) {
	driver := config.GetString("db_driver")
	dsn := config.GetString("db_dsn")

	switch driver {
	case database.DriverSQLite, database.DriverPostgres:
		db, err := database.Open(ctx, driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case "buntdb":
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create buntdb directory: %w", err)
			}
		}
		b, err := kv.NewBunt(dsn)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case "redis":
		r := kv.NewRedis(config.GetString("redis_addr"), config.GetString("redis_password"), config.GetInt("redis_db"))
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return r, nil, nil
	case "memory":
		return store.NewMemoryBackend(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown db_driver %q", driver)
	}
}
