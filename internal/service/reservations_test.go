package service

import (
	"context"
	"testing"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReservationStore struct {
	reservations map[string]models.Reservation
}

func newMockReservationStore() *mockReservationStore {
	return &mockReservationStore{reservations: make(map[string]models.Reservation)}
}

func (m *mockReservationStore) Create(ctx context.Context, res *models.Reservation) error {
	m.reservations[res.ID] = *res
	return nil
}

func (m *mockReservationStore) Get(ctx context.Context, id string) (models.Reservation, error) {
	res, ok := m.reservations[id]
	if !ok {
		return models.Reservation{}, core.ErrNotFound
	}
	return res, nil
}

func (m *mockReservationStore) Resolve(ctx context.Context, id string, status models.ReservationStatus) (models.Reservation, bool, error) {
	res, ok := m.reservations[id]
	if !ok || res.Status != models.ReservationBooked {
		return models.Reservation{}, false, nil
	}
	res.Status = status
	m.reservations[id] = res
	return res, true, nil
}

func (m *mockReservationStore) ListBooked(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, res := range m.reservations {
		if res.Status == models.ReservationBooked {
			out = append(out, res)
		}
	}
	return out, nil
}

func booking() BookReservationRequest {
	return BookReservationRequest{
		TableNumber:  5,
		CustomerName: "Garcia",
		PartySize:    4,
		ReservedFor:  time.Now().Add(2 * time.Hour),
	}
}

func TestBookReservationPublishes(t *testing.T) {
	repo := newMockReservationStore()
	pub := &mockPublisher{}
	svc := NewReservationService(repo, pub, logger.Discard())

	res, err := svc.Book(context.Background(), booking())
	require.NoError(t, err)

	assert.Equal(t, models.ReservationBooked, res.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, feed.TableReservations, pub.events[0].Table)
	assert.Equal(t, feed.OpInsert, pub.events[0].Op)
}

func TestBookReservationValidates(t *testing.T) {
	svc := NewReservationService(newMockReservationStore(), &mockPublisher{}, logger.Discard())

	req := booking()
	req.CustomerName = ""
	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrFieldIsEmpty)

	req = booking()
	req.PartySize = 0
	_, err = svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrFieldIsEmpty)
}

func TestSeatIsTerminal(t *testing.T) {
	repo := newMockReservationStore()
	pub := &mockPublisher{}
	svc := NewReservationService(repo, pub, logger.Discard())

	res, err := svc.Book(context.Background(), booking())
	require.NoError(t, err)

	seated, err := svc.Seat(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationSeated, seated.Status)
	require.Len(t, pub.events, 2)
	assert.Equal(t, feed.OpUpdate, pub.events[1].Op)

	// Cancelling after seating is a no-op. No new event, status unchanged.
	again, err := svc.Cancel(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationSeated, again.Status)
	assert.Len(t, pub.events, 2)
}

func TestCancelDropsBooking(t *testing.T) {
	repo := newMockReservationStore()
	svc := NewReservationService(repo, &mockPublisher{}, logger.Discard())

	res, err := svc.Book(context.Background(), booking())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), res.ID)
	require.NoError(t, err)

	booked, err := svc.ListBooked(context.Background())
	require.NoError(t, err)
	assert.Empty(t, booked)
}
