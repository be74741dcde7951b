package service

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/pkg/logger"

	"github.com/google/uuid"
)

type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	Get(ctx context.Context, id string) (models.Reservation, error)
	Resolve(ctx context.Context, id string, status models.ReservationStatus) (models.Reservation, bool, error)
	ListBooked(ctx context.Context) ([]models.Reservation, error)
}

// ReservationService handles table bookings: created booked, resolved to
// seated or cancelled, both terminal.
type ReservationService struct {
	reservations ReservationStore
	pub          Publisher
	mylog        logger.Logger
	now          func() time.Time
}

func NewReservationService(reservations ReservationStore, pub Publisher, mylog logger.Logger) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		pub:          pub,
		mylog:        mylog,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type BookReservationRequest struct {
	TableNumber  int       `json:"table_number"`
	CustomerName string    `json:"customer_name"`
	PartySize    int       `json:"party_size"`
	ReservedFor  time.Time `json:"reserved_for"`
}

func (s *ReservationService) Book(ctx context.Context, req BookReservationRequest) (models.Reservation, error) {
	if req.TableNumber <= 0 {
		return models.Reservation{}, fmt.Errorf("%w: table_number", core.ErrFieldIsEmpty)
	}
	if req.CustomerName == "" {
		return models.Reservation{}, fmt.Errorf("%w: customer_name", core.ErrFieldIsEmpty)
	}
	if req.PartySize <= 0 {
		return models.Reservation{}, fmt.Errorf("%w: party_size", core.ErrFieldIsEmpty)
	}
	if req.ReservedFor.IsZero() {
		return models.Reservation{}, fmt.Errorf("%w: reserved_for", core.ErrFieldIsEmpty)
	}

	res := models.Reservation{
		ID:           uuid.NewString(),
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		PartySize:    req.PartySize,
		ReservedFor:  req.ReservedFor,
		Status:       models.ReservationBooked,
		CreatedAt:    s.now(),
	}
	if err := s.reservations.Create(ctx, &res); err != nil {
		s.mylog.Action("book_reservation_failed").Error("Failed to book reservation", err)
		return models.Reservation{}, err
	}

	s.publishReservation(ctx, feed.ReservationEvent(feed.OpInsert, nil, &res))
	s.mylog.Action("reservation_booked").Info("Reservation booked",
		"table", res.TableNumber, "reserved_for", res.ReservedFor)
	return res, nil
}

// Seat marks a booked reservation as arrived. Already-resolved bookings are
// a no-op.
func (s *ReservationService) Seat(ctx context.Context, id string) (models.Reservation, error) {
	return s.resolve(ctx, id, models.ReservationSeated)
}

// Cancel drops a booked reservation. Already-resolved bookings are a no-op.
func (s *ReservationService) Cancel(ctx context.Context, id string) (models.Reservation, error) {
	return s.resolve(ctx, id, models.ReservationCancelled)
}

func (s *ReservationService) resolve(ctx context.Context, id string, status models.ReservationStatus) (models.Reservation, error) {
	res, changed, err := s.reservations.Resolve(ctx, id, status)
	if err != nil {
		s.mylog.Action("resolve_reservation_failed").Error("Failed to resolve reservation", err)
		return models.Reservation{}, err
	}
	if !changed {
		return s.reservations.Get(ctx, id)
	}

	before := res
	before.Status = models.ReservationBooked
	s.publishReservation(ctx, feed.ReservationEvent(feed.OpUpdate, &before, &res))
	s.mylog.Action("reservation_resolved").Info("Reservation resolved",
		"table", res.TableNumber, "status", res.Status)
	return res, nil
}

func (s *ReservationService) ListBooked(ctx context.Context) ([]models.Reservation, error) {
	return s.reservations.ListBooked(ctx)
}

func (s *ReservationService) publishReservation(ctx context.Context, ev feed.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishChange(ctx, ev.Table, ev); err != nil {
		s.mylog.Action("feed_publish_failed").Error("Change event lost, resync will cover", err)
	}
}
