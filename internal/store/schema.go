package store

import (
	"context"
	"fmt"
)

// InitSchema creates the tables on first run. Items live in one JSONB column
// on the order row, matching the unit of the change feed: a row event always
// carries the full ticket.
func (d *DB) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY,
            table_number INT NOT NULL,
            items JSONB NOT NULL,
            status TEXT NOT NULL,
            payment_method TEXT,
            is_paid BOOLEAN NOT NULL DEFAULT FALSE,
            drinks_served BOOLEAN NOT NULL DEFAULT FALSE,
            total_amount DOUBLE PRECISION NOT NULL,
            customer_id TEXT,
            hash_actual TEXT,
            hash_anterior TEXT,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            paid_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS orders_active_idx ON orders (table_number) WHERE status <> 'served'`,
		`CREATE TABLE IF NOT EXISTS waiter_calls (
            id UUID PRIMARY KEY,
            table_number INT NOT NULL,
            status TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id UUID PRIMARY KEY,
            table_number INT NOT NULL,
            customer_name TEXT NOT NULL,
            party_size INT NOT NULL,
            reserved_for TIMESTAMPTZ NOT NULL,
            status TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id BIGSERIAL PRIMARY KEY,
            payload JSONB NOT NULL,
            hash_anterior TEXT NOT NULL,
            hash_actual TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	}
	for _, q := range stmts {
		if _, err := d.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
