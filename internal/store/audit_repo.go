package store

import (
	"context"
	"errors"
	"fmt"

	"comanda/internal/domain/models"

	"github.com/jackc/pgx/v5"
)

type AuditRepo struct {
	q Querier
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{q: db.Pool()}
}

// on picks the executor: the caller's open transaction, or the pool when
// the write stands alone.
func (r *AuditRepo) on(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.q
}

// TailHash returns the hash of the newest ledger entry. ok is false when the
// ledger is empty and the caller should chain off the genesis sentinel.
func (r *AuditRepo) TailHash(ctx context.Context, tx pgx.Tx) (string, bool, error) {
	row := r.on(tx).QueryRow(ctx, `
		SELECT hash_actual FROM audit_log ORDER BY id DESC LIMIT 1
	`)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read chain tail: %w", err)
	}
	return hash, true, nil
}

func (r *AuditRepo) Append(ctx context.Context, tx pgx.Tx, e *models.AuditLogEntry) error {
	row := r.on(tx).QueryRow(ctx, `
		INSERT INTO audit_log (payload, hash_anterior, hash_actual, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, []byte(e.Payload), e.HashAnterior, e.HashActual, e.CreatedAt)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAll returns the full ledger in append order, for the verification pass.
func (r *AuditRepo) ListAll(ctx context.Context) ([]models.AuditLogEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, payload, hash_anterior, hash_actual, created_at
		FROM audit_log ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var e models.AuditLogEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &payload, &e.HashAnterior, &e.HashActual, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
