package store

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/config"
	"comanda/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the executor subset the repositories run their statements on.
// Both the pool and an open transaction satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps the pgx pool shared by the repositories of this package.
type DB struct {
	pool  *pgxpool.Pool
	mylog logger.Logger
}

// Start opens the connection pool and verifies it with a ping.
func Start(ctx context.Context, cfg *config.Postgres, mylog logger.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	return &DB{pool: pool, mylog: mylog}, nil
}

func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// WithTx runs fn inside one transaction, committing on success and rolling
// back on any error.
func (d *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsAlive pings the pool to verify it is responsive.
func (d *DB) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	return d.pool.Ping(ctx)
}

// Reconnect retries the ping a fixed number of times before giving up.
func (d *DB) Reconnect(ctx context.Context) error {
	mylog := d.mylog.Action("db_reconnecting")
	const attempts = 10
	for i := 0; i < attempts; i++ {
		mylog.Info("reconnecting attempt", "attempt_number", i+1)
		if err := d.IsAlive(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("reconnecting failed")
}

func (d *DB) Close() {
	d.pool.Close()
}
