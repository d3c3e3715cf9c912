package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/internal/config"
	"github.com/warp/capacity-engine/store/postgres"
	"github.com/warp/capacity-engine/store/sqlite"
)

// openStore connects to the configured database. SQLite migrates on open;
// PostgreSQL migrations run through the returned migrator.
func openStore(ctx context.Context, db config.DatabaseConfig) (api.Store, func(context.Context) error, func(), error) {
	switch db.Driver {
	case "postgres":
		pg, err := postgres.NewDB(ctx, db.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return pg, pg.RunMigrations, pg.Close, nil

	case "sqlite":
		if db.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(db.DSN), 0755); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		lite, err := sqlite.New(db.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		noop := func(context.Context) error { return nil }
		return lite, noop, func() { lite.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}
