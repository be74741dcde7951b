package reconcile

import (
	"comanda/internal/domain/models"
	"comanda/internal/feed"
)

// OrderChange is a decoded orders-table feed event.
type OrderChange struct {
	Op     feed.Op
	Before *models.Order
	After  *models.Order
}

func (c OrderChange) id() string {
	if c.After != nil {
		return c.After.ID
	}
	if c.Before != nil {
		return c.Before.ID
	}
	return ""
}

// Projection is one surface's local view of the orders relevant to it.
// Merge and Replace return a new value; the version only moves forward.
type Projection struct {
	Version uint64
	Orders  []models.Order
}

func (p Projection) Find(id string) (models.Order, bool) {
	for _, o := range p.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// Merge folds one change event into the projection:
//   - INSERT appends unless the id is already present;
//   - UPDATE replaces in place, preserving array position, unless the new
//     status is terminal for this surface, in which case the order leaves the
//     active projection;
//   - DELETE removes by id.
//
// Pure: the input projection is never mutated.
func Merge(p Projection, ch OrderChange, terminal models.OrderStatus) Projection {
	id := ch.id()
	if id == "" {
		return p
	}

	next := Projection{Version: p.Version + 1}

	switch ch.Op {
	case feed.OpInsert:
		if _, ok := p.Find(id); ok || ch.After == nil {
			next.Orders = p.Orders
			return next
		}
		next.Orders = append(append([]models.Order{}, p.Orders...), *ch.After)

	case feed.OpUpdate:
		if ch.After == nil {
			next.Orders = p.Orders
			return next
		}
		if models.StatusRank(ch.After.Status) >= models.StatusRank(terminal) {
			next.Orders = without(p.Orders, id)
			return next
		}
		if _, ok := p.Find(id); !ok {
			// The INSERT may have been dropped; treat the update as first sight.
			next.Orders = append(append([]models.Order{}, p.Orders...), *ch.After)
			return next
		}
		orders := make([]models.Order, len(p.Orders))
		copy(orders, p.Orders)
		for i := range orders {
			if orders[i].ID == id {
				orders[i] = *ch.After
			}
		}
		next.Orders = orders

	case feed.OpDelete:
		next.Orders = without(p.Orders, id)

	default:
		next.Orders = p.Orders
	}
	return next
}

// Replace is the server-wins overwrite used by the silent resync.
func Replace(p Projection, orders []models.Order) Projection {
	return Projection{Version: p.Version + 1, Orders: orders}
}

func without(orders []models.Order, id string) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}
