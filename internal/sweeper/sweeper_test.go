package sweeper

import (
	"context"
	"testing"
	"time"

	"comanda/internal/domain/models"
	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type mockArchiver struct {
	liberated []int
}

func (m *mockArchiver) LiberateTable(ctx context.Context, table int) error {
	m.liberated = append(m.liberated, table)
	return nil
}

func newSweeper(orders *[]models.Order, archiver Archiver, suggestions *[]Suggestion, now time.Time) *Sweeper {
	var suggestFn func(Suggestion)
	if suggestions != nil {
		suggestFn = func(sg Suggestion) { *suggestions = append(*suggestions, sg) }
	}
	s := New(Options{
		Interval:       time.Minute,
		PaidServeAfter: 30 * time.Minute,
		SuggestAfter:   45 * time.Minute,
	}, func() []models.Order { return *orders }, archiver, suggestFn, logger.Discard())
	s.SetNow(func() time.Time { return now })
	return s
}

func paidOrder(id string, table int, paidAgo time.Duration, now time.Time) models.Order {
	paidAt := now.Add(-paidAgo)
	return models.Order{
		ID: id, TableNumber: table, Status: models.OrderDelivering,
		IsPaid: true, PaidAt: &paidAt, CreatedAt: now.Add(-paidAgo - 10*time.Minute),
	}
}

func TestPaidOrderForceServedAtThreshold(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{paidOrder("o1", 5, 30*time.Minute, now)}
	archiver := &mockArchiver{}
	s := newSweeper(&orders, archiver, nil, now)

	s.Sweep(context.Background())
	assert.Equal(t, []int{5}, archiver.liberated)
}

func TestPaidOrderUnderThresholdLeftAlone(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{paidOrder("o1", 5, 29*time.Minute, now)}
	archiver := &mockArchiver{}
	s := newSweeper(&orders, archiver, nil, now)

	s.Sweep(context.Background())
	assert.Empty(t, archiver.liberated)
}

func TestSecondTickAfterServeIsNoOp(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{paidOrder("o1", 5, 30*time.Minute, now)}
	archiver := &mockArchiver{}
	s := newSweeper(&orders, archiver, nil, now)

	s.Sweep(context.Background())
	// The liberation emptied the projection, as the reconciler would after
	// the served update came back around.
	orders = nil
	s.SetNow(func() time.Time { return now.Add(time.Minute) })
	s.Sweep(context.Background())

	assert.Equal(t, []int{5}, archiver.liberated)
}

func TestUnpaidStaleTableOnlySuggested(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{{
		ID: "o1", TableNumber: 7, Status: models.OrderCooking,
		CreatedAt: now.Add(-50 * time.Minute),
	}}
	archiver := &mockArchiver{}
	var suggestions []Suggestion
	s := newSweeper(&orders, archiver, &suggestions, now)

	s.Sweep(context.Background())

	// Advisory only: no state mutation.
	assert.Empty(t, archiver.liberated)
	assert.Len(t, suggestions, 1)
	assert.Equal(t, 7, suggestions[0].TableNumber)
	assert.Equal(t, "o1", suggestions[0].OldestOrderID)
}

func TestSuggestionFiresOncePerOrder(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{{
		ID: "o1", TableNumber: 7, Status: models.OrderCooking,
		CreatedAt: now.Add(-50 * time.Minute),
	}}
	var suggestions []Suggestion
	s := newSweeper(&orders, &mockArchiver{}, &suggestions, now)

	s.Sweep(context.Background())
	s.Sweep(context.Background())
	assert.Len(t, suggestions, 1)
}

func TestFreshUnpaidTableNotSuggested(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{{
		ID: "o1", TableNumber: 7, Status: models.OrderCooking,
		CreatedAt: now.Add(-20 * time.Minute),
	}}
	var suggestions []Suggestion
	s := newSweeper(&orders, &mockArchiver{}, &suggestions, now)

	s.Sweep(context.Background())
	assert.Empty(t, suggestions)
}

// A table can carry a settled order next to an older unpaid one; the settled
// neighbor must not silence the suggestion for the unpaid ticket.
func TestPaidNeighborDoesNotSuppressSuggestion(t *testing.T) {
	now := time.Now().UTC()
	orders := []models.Order{
		// Paid recently, well under the force-serve threshold, but created
		// before the unpaid order on the same table.
		paidOrder("o-paid", 7, 5*time.Minute, now),
		{
			ID: "o-unpaid", TableNumber: 7, Status: models.OrderCooking,
			CreatedAt: now.Add(-50 * time.Minute),
		},
	}
	orders[0].CreatedAt = now.Add(-70 * time.Minute)
	archiver := &mockArchiver{}
	var suggestions []Suggestion
	s := newSweeper(&orders, archiver, &suggestions, now)

	s.Sweep(context.Background())

	assert.Empty(t, archiver.liberated)
	assert.Len(t, suggestions, 1)
	assert.Equal(t, "o-unpaid", suggestions[0].OldestOrderID)
}
