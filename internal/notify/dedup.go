// Package notify suppresses duplicate user-facing alerts. The change feed is
// at-least-once and resyncs re-report old transitions, so every alert is
// gated on a fired-key set.
package notify

import (
	"strconv"
	"sync"

	"comanda/internal/domain/models"
)

// ItemOrder is the item slot of a key for order-level transitions.
const ItemOrder = "order"

// Key identifies one notifiable transition: an order (or waiter call), the
// item inside it (its index, or ItemOrder for the aggregate), and the status
// being reached.
type Key struct {
	OrderID string
	Item    string
	Status  string
}

func OrderKey(orderID string, status models.OrderStatus) Key {
	return Key{OrderID: orderID, Item: ItemOrder, Status: string(status)}
}

func ItemKey(orderID string, index int, status models.ItemStatus) Key {
	return Key{OrderID: orderID, Item: strconv.Itoa(index), Status: string(status)}
}

func CallKey(callID string, status models.CallStatus) Key {
	return Key{OrderID: callID, Item: "call", Status: string(status)}
}

func ReservationKey(reservationID string, status models.ReservationStatus) Key {
	return Key{OrderID: reservationID, Item: "reservation", Status: string(status)}
}

type Deduplicator struct {
	mu    sync.Mutex
	fired map[Key]struct{}
}

func New() *Deduplicator {
	return &Deduplicator{fired: make(map[Key]struct{})}
}

// Fire records the key and reports whether the alert should surface. The
// second and every later call with the same key returns false.
func (d *Deduplicator) Fire(k Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.fired[k]; seen {
		return false
	}
	d.fired[k] = struct{}{}
	return true
}

// Seed pre-marks everything already reflected in the initial fetch so that
// it never fires retroactively. For each order and item the current status
// and every status below it are marked; a late, out-of-order event reporting
// an older status must stay silent too.
func (d *Deduplicator) Seed(orders []models.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, o := range orders {
		rank := models.StatusRank(o.Status)
		for s, r := range orderRanks {
			if r <= rank {
				d.fired[Key{OrderID: o.ID, Item: ItemOrder, Status: string(s)}] = struct{}{}
			}
		}
		for i, it := range o.Items {
			itemRank := itemRanks[it.Status]
			for s, r := range itemRanks {
				if r <= itemRank {
					d.fired[Key{OrderID: o.ID, Item: strconv.Itoa(i), Status: string(s)}] = struct{}{}
				}
			}
		}
	}
}

var orderRanks = map[models.OrderStatus]int{
	models.OrderPending:    0,
	models.OrderCooking:    1,
	models.OrderReady:      2,
	models.OrderDelivering: 3,
	models.OrderServed:     4,
}

var itemRanks = map[models.ItemStatus]int{
	models.ItemPending: 0,
	models.ItemCooking: 1,
	models.ItemReady:   2,
}
