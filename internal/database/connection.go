// Package database holds the Postgres layer behind the customer API:
// sessions, cart entries, orders and their status history.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cafe-ordering/internal/config"
	"cafe-ordering/internal/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
	pingTimeout     = 5 * time.Second

	// Headroom above the order-creation bound for cart reads, order
	// history and health checks.
	readHeadroom = 10
)

// DB wraps the pgx connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger *logger.Logger
}

// New connects to Postgres with startup retries. The pool is sized off
// server.max_concurrent: order creations hold at most that many
// connections, and reads share the headroom on top.
func New(cfg *config.Config, log *logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	maxConns := int32(cfg.Server.MaxConcurrent) + readHeadroom
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = maxConns / 4
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := connect(poolConfig, cfg, log)
	if err != nil {
		return nil, err
	}

	return &DB{Pool: pool, logger: log}, nil
}

// connect retries with linear backoff; the database regularly comes up
// after the service does in compose environments.
func connect(poolConfig *pgxpool.Config, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		if attempt < connectAttempts {
			wait := time.Duration(attempt) * connectBackoff
			log.Error("db_connection_failed",
				fmt.Sprintf("Could not reach Postgres, retrying in %v", wait),
				"startup", err, map[string]interface{}{
					"host":     cfg.Database.Host,
					"database": cfg.Database.Database,
					"attempt":  attempt,
				})
			time.Sleep(wait)
		}
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", connectAttempts, lastErr)
}

// Close releases the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.Pool.Begin(ctx)
}

// Exec runs a statement and discards the result.
func (db *DB) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := db.Pool.Exec(ctx, sql, args...)
	return err
}

// Query runs a row-returning query.
func (db *DB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.Pool.Query(ctx, sql, args...)
}

// QueryRow runs a query expected to return at most one row.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.Pool.QueryRow(ctx, sql, args...)
}
