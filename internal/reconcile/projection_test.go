package reconcile

import (
	"testing"

	"comanda/internal/domain/models"
	"comanda/internal/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id string, table int, status models.OrderStatus) models.Order {
	return models.Order{ID: id, TableNumber: table, Status: status}
}

func TestMergeInsertAppendsOnce(t *testing.T) {
	p := Projection{}
	o := order("o1", 3, models.OrderPending)

	p = Merge(p, OrderChange{Op: feed.OpInsert, After: &o}, models.OrderServed)
	require.Len(t, p.Orders, 1)

	// Duplicate delivery of the same INSERT is id-deduplicated.
	p = Merge(p, OrderChange{Op: feed.OpInsert, After: &o}, models.OrderServed)
	assert.Len(t, p.Orders, 1)
	assert.Equal(t, uint64(2), p.Version)
}

func TestMergeUpdateReplacesInPlace(t *testing.T) {
	p := Projection{Orders: []models.Order{
		order("o1", 3, models.OrderPending),
		order("o2", 4, models.OrderPending),
	}}

	upd := order("o1", 3, models.OrderCooking)
	p = Merge(p, OrderChange{Op: feed.OpUpdate, After: &upd}, models.OrderServed)

	require.Len(t, p.Orders, 2)
	// Array position preserved.
	assert.Equal(t, "o1", p.Orders[0].ID)
	assert.Equal(t, models.OrderCooking, p.Orders[0].Status)
	assert.Equal(t, "o2", p.Orders[1].ID)
}

func TestMergeUpdateRemovesTerminal(t *testing.T) {
	p := Projection{Orders: []models.Order{order("o1", 3, models.OrderReady)}}

	served := order("o1", 3, models.OrderServed)
	p = Merge(p, OrderChange{Op: feed.OpUpdate, After: &served}, models.OrderServed)

	assert.Empty(t, p.Orders)
}

func TestMergeUpdateUnknownIdIsFirstSight(t *testing.T) {
	p := Projection{}
	upd := order("o1", 3, models.OrderCooking)

	p = Merge(p, OrderChange{Op: feed.OpUpdate, After: &upd}, models.OrderServed)
	assert.Len(t, p.Orders, 1)
}

func TestMergeDeleteRemovesById(t *testing.T) {
	p := Projection{Orders: []models.Order{
		order("o1", 3, models.OrderPending),
		order("o2", 4, models.OrderPending),
	}}

	gone := order("o1", 3, models.OrderPending)
	p = Merge(p, OrderChange{Op: feed.OpDelete, Before: &gone}, models.OrderServed)

	require.Len(t, p.Orders, 1)
	assert.Equal(t, "o2", p.Orders[0].ID)
}

func TestMergeIsPure(t *testing.T) {
	orig := Projection{Orders: []models.Order{order("o1", 3, models.OrderPending)}}

	upd := order("o1", 3, models.OrderCooking)
	_ = Merge(orig, OrderChange{Op: feed.OpUpdate, After: &upd}, models.OrderServed)

	assert.Equal(t, models.OrderPending, orig.Orders[0].Status)
	assert.Equal(t, uint64(0), orig.Version)
}

// Convergence: whatever garbage sequence of dropped and duplicated events the
// projection absorbed, the next server-wins Replace restores exact agreement.
func TestReplaceConverges(t *testing.T) {
	p := Projection{}
	o1 := order("o1", 3, models.OrderPending)
	p = Merge(p, OrderChange{Op: feed.OpInsert, After: &o1}, models.OrderServed)
	p = Merge(p, OrderChange{Op: feed.OpInsert, After: &o1}, models.OrderServed)
	// o2's INSERT was dropped entirely; a stale o1 update arrives twice.
	stale := order("o1", 3, models.OrderCooking)
	p = Merge(p, OrderChange{Op: feed.OpUpdate, After: &stale}, models.OrderServed)
	p = Merge(p, OrderChange{Op: feed.OpUpdate, After: &stale}, models.OrderServed)

	truth := []models.Order{
		order("o1", 3, models.OrderReady),
		order("o2", 4, models.OrderCooking),
	}
	p = Replace(p, truth)

	assert.Equal(t, truth, p.Orders)
}
