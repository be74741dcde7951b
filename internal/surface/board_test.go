package surface

import (
	"context"
	"sync"
	"testing"
	"time"

	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/notify"
	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type mockCallLister struct {
	mu    sync.Mutex
	calls []models.WaiterCall
}

func (m *mockCallLister) ListPending(ctx context.Context) ([]models.WaiterCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WaiterCall{}, m.calls...), nil
}

func (m *mockCallLister) set(calls ...models.WaiterCall) {
	m.mu.Lock()
	m.calls = calls
	m.mu.Unlock()
}

type mockReservationLister struct {
	mu     sync.Mutex
	booked []models.Reservation
}

func (m *mockReservationLister) ListBooked(ctx context.Context) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Reservation{}, m.booked...), nil
}

func (m *mockReservationLister) set(booked ...models.Reservation) {
	m.mu.Lock()
	m.booked = booked
	m.mu.Unlock()
}

func pendingCall(id string, table int) models.WaiterCall {
	return models.WaiterCall{ID: id, TableNumber: table, Status: models.CallPending}
}

// A dashboard started after calls already exist must show them right away,
// without re-alerting what an earlier surface already announced.
func TestCallBoardSeedsFromStore(t *testing.T) {
	lister := &mockCallLister{}
	lister.set(pendingCall("c1", 4))
	dedup := notify.New()
	events := make(chan feed.Event)
	board := newCallBoard(lister, events, dedup, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = board.run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	// The seed marked the key: the call must not alert again.
	assert.False(t, dedup.Fire(notify.CallKey("c1", models.CallPending)))
}

func TestCallBoardAlertsOnNewFeedEvent(t *testing.T) {
	lister := &mockCallLister{}
	dedup := notify.New()
	events := make(chan feed.Event, 1)
	board := newCallBoard(lister, events, dedup, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = board.run(ctx) }()

	call := pendingCall("c2", 6)
	events <- feed.CallEvent(feed.OpInsert, nil, &call)

	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, dedup.Fire(notify.CallKey("c2", models.CallPending)))
}

// A dropped feed event is healed by the next resync: the call shows up and
// alerts exactly once, and an attended call disappears even when its update
// event was lost too.
func TestCallBoardResyncHealsDroppedEvents(t *testing.T) {
	lister := &mockCallLister{}
	dedup := notify.New()
	events := make(chan feed.Event)
	board := newCallBoard(lister, events, dedup, 20*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = board.run(ctx) }()

	// Created behind the board's back, no event delivered.
	lister.set(pendingCall("c3", 2))
	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, dedup.Fire(notify.CallKey("c3", models.CallPending)))

	// Attended behind the board's back.
	lister.set()
	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestReservationBoardSeedsFromStore(t *testing.T) {
	lister := &mockReservationLister{}
	lister.set(models.Reservation{ID: "r1", TableNumber: 8, Status: models.ReservationBooked})
	dedup := notify.New()
	events := make(chan feed.Event)
	board := newReservationBoard(lister, events, dedup, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = board.run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, dedup.Fire(notify.ReservationKey("r1", models.ReservationBooked)))
}

func TestReservationBoardResyncHealsDroppedEvents(t *testing.T) {
	lister := &mockReservationLister{}
	dedup := notify.New()
	events := make(chan feed.Event)
	board := newReservationBoard(lister, events, dedup, 20*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = board.run(ctx) }()

	lister.set(models.Reservation{ID: "r2", TableNumber: 3, Status: models.ReservationBooked})
	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	// Seated behind the board's back.
	lister.set()
	assert.Eventually(t, func() bool {
		return len(board.snapshot()) == 0
	}, time.Second, 5*time.Millisecond)
}
