package store

import (
	"context"
	"errors"
	"fmt"

	"comanda/internal/core"
	"comanda/internal/domain/models"

	"github.com/jackc/pgx/v5"
)

type ReservationRepo struct {
	db *DB
}

func NewReservationRepo(db *DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

const reservationColumns = `id, table_number, customer_name, party_size, reserved_for, status, created_at`

func (r *ReservationRepo) Create(ctx context.Context, res *models.Reservation) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO reservations (id, table_number, customer_name, party_size, reserved_for, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, res.ID, res.TableNumber, res.CustomerName, res.PartySize, res.ReservedFor, res.Status, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) Get(ctx context.Context, id string) (models.Reservation, error) {
	row := r.db.Pool().QueryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1
	`, id)
	return scanReservation(row)
}

// Resolve moves a booked reservation to a terminal status. Resolving an
// already-resolved reservation is a no-op so racing terminals are harmless.
func (r *ReservationRepo) Resolve(ctx context.Context, id string, status models.ReservationStatus) (models.Reservation, bool, error) {
	row := r.db.Pool().QueryRow(ctx, `
		UPDATE reservations SET status = $2
		WHERE id = $1 AND status = 'booked'
		RETURNING `+reservationColumns, id, status)

	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return models.Reservation{}, false, nil
		}
		return models.Reservation{}, false, fmt.Errorf("resolve reservation: %w", err)
	}
	return res, true, nil
}

func (r *ReservationRepo) ListBooked(ctx context.Context) ([]models.Reservation, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'booked' ORDER BY reserved_for
	`)
	if err != nil {
		return nil, fmt.Errorf("list booked reservations: %w", err)
	}
	defer rows.Close()

	out := []models.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (models.Reservation, error) {
	var res models.Reservation
	err := row.Scan(&res.ID, &res.TableNumber, &res.CustomerName, &res.PartySize,
		&res.ReservedFor, &res.Status, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Reservation{}, core.ErrNotFound
		}
		return models.Reservation{}, fmt.Errorf("scan reservation: %w", err)
	}
	return res, nil
}
