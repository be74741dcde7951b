package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/notify"
	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu         sync.Mutex
	listActive func(ctx context.Context, table *int) ([]models.Order, error)
}

func (m *mockStore) ListActive(ctx context.Context, table *int) ([]models.Order, error) {
	m.mu.Lock()
	fn := m.listActive
	m.mu.Unlock()
	return fn(ctx, table)
}

type alertSink struct {
	mu   sync.Mutex
	seen []Notification
}

func (s *alertSink) add(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
}

func (s *alertSink) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification{}, s.seen...)
}

func startReconciler(t *testing.T, store Store, events chan feed.Event, sink *alertSink) (*Reconciler, context.CancelFunc) {
	t.Helper()
	r := New(store, notify.New(), events, Options{
		Terminal:       models.OrderServed,
		ResyncInterval: time.Hour, // ticks never fire during these tests
	}, sink.add, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r, cancel
}

func TestSeedThenMergeEvents(t *testing.T) {
	store := &mockStore{listActive: func(ctx context.Context, table *int) ([]models.Order, error) {
		return []models.Order{order("o1", 3, models.OrderPending)}, nil
	}}
	events := make(chan feed.Event)
	sink := &alertSink{}
	r, _ := startReconciler(t, store, events, sink)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	o2 := order("o2", 4, models.OrderPending)
	events <- feed.OrderEvent(feed.OpInsert, nil, &o2)

	assert.Eventually(t, func() bool { return len(r.Snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDuplicateEventNotifiesOnce(t *testing.T) {
	store := &mockStore{listActive: func(ctx context.Context, table *int) ([]models.Order, error) {
		return []models.Order{{
			ID: "o1", TableNumber: 3, Status: models.OrderCooking,
			Items: []models.LineItem{{Name: "pasta", Status: models.ItemCooking}},
		}}, nil
	}}
	events := make(chan feed.Event)
	sink := &alertSink{}
	r, _ := startReconciler(t, store, events, sink)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	upd := models.Order{
		ID: "o1", TableNumber: 3, Status: models.OrderReady,
		Items: []models.LineItem{{Name: "pasta", Status: models.ItemReady, IsReady: true}},
	}
	ev := feed.OrderEvent(feed.OpUpdate, nil, &upd)
	events <- ev
	events <- ev // duplicate delivery

	require.Eventually(t, func() bool {
		for _, n := range sink.all() {
			if n.ItemIndex == 0 && n.Status == string(models.ItemReady) {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	itemReady := 0
	orderReady := 0
	for _, n := range sink.all() {
		if n.ItemIndex == 0 && n.Status == string(models.ItemReady) {
			itemReady++
		}
		if n.ItemIndex == -1 && n.Status == string(models.OrderReady) {
			orderReady++
		}
	}
	assert.Equal(t, 1, itemReady)
	assert.Equal(t, 1, orderReady)
}

func TestInitialFetchNeverFiresRetroactively(t *testing.T) {
	store := &mockStore{listActive: func(ctx context.Context, table *int) ([]models.Order, error) {
		return []models.Order{{
			ID: "o1", TableNumber: 3, Status: models.OrderReady,
			Items: []models.LineItem{{Name: "pasta", Status: models.ItemReady, IsReady: true}},
		}}, nil
	}}
	events := make(chan feed.Event)
	sink := &alertSink{}
	r, _ := startReconciler(t, store, events, sink)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	// A stale out-of-order replay reporting a status the seed already passed
	// through stays silent: the seed pre-marked every rank up to ready.
	stale := models.Order{
		ID: "o1", TableNumber: 3, Status: models.OrderCooking,
		Items: []models.LineItem{{Name: "pasta", Status: models.ItemCooking}},
	}
	events <- feed.OrderEvent(feed.OpUpdate, nil, &stale)

	assert.Eventually(t, func() bool { return r.Version() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.all())
}

func TestScopeFiltersOtherTables(t *testing.T) {
	table := 3
	store := &mockStore{listActive: func(ctx context.Context, tbl *int) ([]models.Order, error) {
		return nil, nil
	}}
	events := make(chan feed.Event)
	sink := &alertSink{}
	r := New(store, notify.New(), events, Options{
		Table:          &table,
		ResyncInterval: time.Hour,
	}, sink.add, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = r.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	other := order("o9", 7, models.OrderPending)
	events <- feed.OrderEvent(feed.OpInsert, nil, &other)
	mine := order("o1", 3, models.OrderPending)
	events <- feed.OrderEvent(feed.OpInsert, nil, &mine)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "o1", r.Snapshot()[0].ID)
}

func TestMutateDiscardsSpeculationOnWriteFailure(t *testing.T) {
	truth := []models.Order{order("o1", 3, models.OrderPending)}
	store := &mockStore{listActive: func(ctx context.Context, table *int) ([]models.Order, error) {
		return truth, nil
	}}
	events := make(chan feed.Event)
	sink := &alertSink{}
	r, _ := startReconciler(t, store, events, sink)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	writeErr := errors.New("store rejected the write")
	err := r.Mutate(context.Background(),
		func(orders []models.Order) []models.Order {
			out := append([]models.Order{}, orders...)
			out[0].DrinksServed = true
			return out
		},
		func(ctx context.Context) error { return writeErr },
	)
	require.ErrorIs(t, err, writeErr)

	// The forced resync restored the server state.
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, snap[0].DrinksServed)
}

func TestMutateAppliesOptimistically(t *testing.T) {
	store := &mockStore{listActive: func(ctx context.Context, table *int) ([]models.Order, error) {
		return []models.Order{order("o1", 3, models.OrderPending)}, nil
	}}
	events := make(chan feed.Event)
	sink := &alertSink{}
	r, _ := startReconciler(t, store, events, sink)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	err := r.Mutate(context.Background(),
		func(orders []models.Order) []models.Order {
			out := append([]models.Order{}, orders...)
			out[0].DrinksServed = true
			return out
		},
		func(ctx context.Context) error { return nil },
	)
	require.NoError(t, err)
	assert.True(t, r.Snapshot()[0].DrinksServed)
}
