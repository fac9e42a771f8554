// Package store is the persistence layer: task/history upsert, the
// replace-history transaction, the dedup sweep, sync-run bookkeeping, and
// the batched query helpers the metrics engine needs. Schema migration and
// simple upserts go through gorm; everything that needs a recursive CTE, a
// window function, or a single batched join goes through a raw pgxpool
// connection, following the teacher's split between db/postgres.go (gorm)
// and db/postgres_pgx.go (pgx).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB bundles the two connection handles the store needs: a pgxpool for raw
// SQL and a gorm handle for migrations and simple upserts. Both point at the
// same database; they are separate handles because pgx and gorm manage their
// own pools.
type DB struct {
	pool *pgxpool.Pool
	gdb  *gorm.DB
}

// Open creates both connection handles for dsn and runs schema migration.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: opening gorm connection: %w", err)
	}

	db := &DB{pool: pool, gdb: gdb}
	if err := db.migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	if err := db.gdb.AutoMigrate(&Task{}, &StatusHistoryEntry{}, &SyncRunLog{}); err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}
	// AutoMigrate derives indexes from struct tags but the dedup sweep's
	// scan pattern benefits from an explicit composite index; create it
	// defensively since IF NOT EXISTS makes this idempotent.
	if err := db.gdb.Exec(
		`CREATE INDEX IF NOT EXISTS idx_task_history_dedup ON task_history (task_id, status, start_date)`,
	).Error; err != nil {
		return fmt.Errorf("store: creating dedup index: %w", err)
	}
	return nil
}

// Close releases both connection handles.
func (db *DB) Close() {
	db.pool.Close()
	if sqlDB, err := db.gdb.DB(); err == nil {
		sqlDB.Close()
	}
}

// Pool exposes the raw pgxpool for components that need direct control
// (e.g. batched joins, recursive CTEs).
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}
