package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"

	"github.com/jackc/pgx/v5"
)

// FieldPatch is a partial order update; nil fields are left untouched.
type FieldPatch struct {
	Status        *models.OrderStatus
	PaymentMethod *models.PaymentMethod
	IsPaid        *bool
	PaidAt        *time.Time
	DrinksServed  *bool
}

type OrderRepo struct {
	q Querier
}

func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{q: db.Pool()}
}

// inTx returns a view of the repository bound to an open transaction.
func (r *OrderRepo) inTx(tx pgx.Tx) *OrderRepo {
	return &OrderRepo{q: tx}
}

const orderColumns = `id, table_number, items, status, payment_method, is_paid,
	drinks_served, total_amount, customer_id, created_at, updated_at, paid_at,
	hash_actual, hash_anterior`

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO orders (
			id, table_number, items, status, payment_method, is_paid,
			drinks_served, total_amount, customer_id, created_at, updated_at,
			hash_actual, hash_anterior
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		o.ID, o.TableNumber, items, o.Status, nullable(string(o.PaymentMethod)),
		o.IsPaid, o.DrinksServed, o.TotalAmount, nullable(o.CustomerID),
		o.CreatedAt, o.UpdatedAt, nullable(o.HashActual), nullable(o.HashAnterior),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (models.Order, error) {
	row := r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, core.ErrNotFound
		}
		return models.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListActive returns every non-served order, oldest first, optionally scoped
// to one table.
func (r *OrderRepo) ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status <> 'served'`
	args := []any{}
	if tableNumber != nil {
		query += ` AND table_number = $1`
		args = append(args, *tableNumber)
	}
	query += ` ORDER BY created_at`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateItems writes back the whole items sequence plus any field patch and
// returns the updated row.
//
// This is a read-modify-write of the entire sequence: two concurrent advances
// on different items of the same order can clobber each other when the second
// writer read before the first write committed. Deployments run one kitchen
// terminal per venue (single writer per order), and the advance operation is
// idempotent, so a lost advance is healed by the next staff tap or resync.
func (r *OrderRepo) UpdateItems(ctx context.Context, id string, items []models.LineItem, patch FieldPatch) (models.Order, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return models.Order{}, fmt.Errorf("marshal items: %w", err)
	}

	set := "items = $2, updated_at = $3"
	args := []any{id, raw, time.Now().UTC()}
	set, args = appendPatch(set, args, patch)

	row := r.q.QueryRow(ctx,
		`UPDATE orders SET `+set+` WHERE id = $1 AND status <> 'served' RETURNING `+orderColumns, args...)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, r.missOrServed(ctx, id)
		}
		return models.Order{}, fmt.Errorf("update items: %w", err)
	}
	return o, nil
}

// UpdateFields applies a partial field update and returns the updated row.
func (r *OrderRepo) UpdateFields(ctx context.Context, id string, patch FieldPatch) (models.Order, error) {
	set := "updated_at = $2"
	args := []any{id, time.Now().UTC()}
	set, args = appendPatch(set, args, patch)

	row := r.q.QueryRow(ctx,
		`UPDATE orders SET `+set+` WHERE id = $1 AND status <> 'served' RETURNING `+orderColumns, args...)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, r.missOrServed(ctx, id)
		}
		return models.Order{}, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

// CreateIn inserts the order inside the caller's transaction.
func (r *OrderRepo) CreateIn(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	return r.inTx(tx).Create(ctx, o)
}

// UpdateFieldsIn applies the patch inside the caller's transaction.
func (r *OrderRepo) UpdateFieldsIn(ctx context.Context, tx pgx.Tx, id string, patch FieldPatch) (models.Order, error) {
	return r.inTx(tx).UpdateFields(ctx, id, patch)
}

// missOrServed resolves the two reasons a guarded update matched no row: the
// order either does not exist or was served since the caller last read it.
// The guard mirrors MarkServed so a staff write racing the sweeper's
// liberation cannot resurrect a served order.
func (r *OrderRepo) missOrServed(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return core.ErrOrderServed
}

// MarkServed is the terminal transition. Guarded in SQL so that a race
// between staff and the sweeper stays a no-op for the loser.
func (r *OrderRepo) MarkServed(ctx context.Context, id string) (models.Order, bool, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE orders SET status = 'served', updated_at = $2
		WHERE id = $1 AND status <> 'served'
		RETURNING `+orderColumns, id, time.Now().UTC())
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already served or gone; either way there is nothing to do.
			return models.Order{}, false, nil
		}
		return models.Order{}, false, fmt.Errorf("mark served: %w", err)
	}
	return o, true, nil
}

func appendPatch(set string, args []any, patch FieldPatch) (string, []any) {
	add := func(col string, v any) {
		args = append(args, v)
		set = fmt.Sprintf("%s, %s = $%d", set, col, len(args))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.PaymentMethod != nil {
		add("payment_method", string(*patch.PaymentMethod))
	}
	if patch.IsPaid != nil {
		add("is_paid", *patch.IsPaid)
	}
	if patch.PaidAt != nil {
		add("paid_at", *patch.PaidAt)
	}
	if patch.DrinksServed != nil {
		add("drinks_served", *patch.DrinksServed)
	}
	return set, args
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o             models.Order
		items         []byte
		paymentMethod *string
		customerID    *string
		paidAt        *time.Time
		hashActual    *string
		hashAnterior  *string
	)
	err := row.Scan(
		&o.ID, &o.TableNumber, &items, &o.Status, &paymentMethod, &o.IsPaid,
		&o.DrinksServed, &o.TotalAmount, &customerID, &o.CreatedAt, &o.UpdatedAt,
		&paidAt, &hashActual, &hashAnterior,
	)
	if err != nil {
		return models.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return models.Order{}, fmt.Errorf("unmarshal items: %w", err)
	}
	if paymentMethod != nil {
		o.PaymentMethod = models.PaymentMethod(*paymentMethod)
	}
	if customerID != nil {
		o.CustomerID = *customerID
	}
	o.PaidAt = paidAt
	if hashActual != nil {
		o.HashActual = *hashActual
	}
	if hashAnterior != nil {
		o.HashAnterior = *hashAnterior
	}
	return o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
