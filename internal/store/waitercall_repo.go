package store

import (
	"context"
	"errors"
	"fmt"

	"comanda/internal/core"
	"comanda/internal/domain/models"

	"github.com/jackc/pgx/v5"
)

type WaiterCallRepo struct {
	db *DB
}

func NewWaiterCallRepo(db *DB) *WaiterCallRepo {
	return &WaiterCallRepo{db: db}
}

func (r *WaiterCallRepo) Create(ctx context.Context, c *models.WaiterCall) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO waiter_calls (id, table_number, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.TableNumber, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert waiter call: %w", err)
	}
	return nil
}

// Attend resolves a pending call. Attending an already-attended call is a
// no-op so a race between two staff terminals is harmless.
func (r *WaiterCallRepo) Attend(ctx context.Context, id string) (models.WaiterCall, bool, error) {
	row := r.db.Pool().QueryRow(ctx, `
		UPDATE waiter_calls SET status = 'attended'
		WHERE id = $1 AND status = 'pending'
		RETURNING id, table_number, status, created_at
	`, id)

	var c models.WaiterCall
	if err := row.Scan(&c.ID, &c.TableNumber, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WaiterCall{}, false, nil
		}
		return models.WaiterCall{}, false, fmt.Errorf("attend waiter call: %w", err)
	}
	return c, true, nil
}

func (r *WaiterCallRepo) Get(ctx context.Context, id string) (models.WaiterCall, error) {
	row := r.db.Pool().QueryRow(ctx, `
		SELECT id, table_number, status, created_at FROM waiter_calls WHERE id = $1
	`, id)

	var c models.WaiterCall
	if err := row.Scan(&c.ID, &c.TableNumber, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WaiterCall{}, core.ErrNotFound
		}
		return models.WaiterCall{}, fmt.Errorf("get waiter call: %w", err)
	}
	return c, nil
}

func (r *WaiterCallRepo) ListPending(ctx context.Context) ([]models.WaiterCall, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, table_number, status, created_at FROM waiter_calls
		WHERE status = 'pending' ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending calls: %w", err)
	}
	defer rows.Close()

	calls := []models.WaiterCall{}
	for rows.Next() {
		var c models.WaiterCall
		if err := rows.Scan(&c.ID, &c.TableNumber, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan waiter call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
