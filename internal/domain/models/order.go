package models

import "time"

// BeverageCategory is the literal category value that marks a line item as a
// drink. Drinks never block an order from reaching "ready".
const BeverageCategory = "bebida"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderCooking    OrderStatus = "cooking"
	OrderReady      OrderStatus = "ready"
	OrderDelivering OrderStatus = "delivering"
	OrderServed     OrderStatus = "served"
)

var orderStatusRank = map[OrderStatus]int{
	OrderPending:    0,
	OrderCooking:    1,
	OrderReady:      2,
	OrderDelivering: 3,
	OrderServed:     4,
}

// StatusRank returns the position of s in the order lifecycle, or -1 for an
// unknown status. Status writes must never lower the rank.
func StatusRank(s OrderStatus) int {
	r, ok := orderStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemCooking ItemStatus = "cooking"
	ItemReady   ItemStatus = "ready"
)

// NextItemStatus advances an item one step. Advancing a ready item returns
// ready again, which makes the advance operation idempotent at the top.
func NextItemStatus(s ItemStatus) ItemStatus {
	switch s {
	case ItemPending:
		return ItemCooking
	case ItemCooking:
		return ItemReady
	default:
		return ItemReady
	}
}

type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayCard   PaymentMethod = "card"
	PayOnline PaymentMethod = "online"
	PayCredit PaymentMethod = "credit"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PayCash, PayCard, PayOnline, PayCredit:
		return true
	}
	return false
}

// LineItem is one dish or drink inside an order. Items carry no id of their
// own; their index inside Order.Items is their identity.
type LineItem struct {
	Name     string     `json:"name"`
	Qty      int        `json:"qty"`
	Category string     `json:"category"`
	Status   ItemStatus `json:"status"`
	IsReady  bool       `json:"is_ready"`
	IsServed bool       `json:"is_served"`
}

func (li LineItem) IsBeverage() bool {
	return li.Category == BeverageCategory
}

// Order is one ticket tied to a physical table.
type Order struct {
	ID            string        `json:"id"`
	TableNumber   int           `json:"table_number"`
	Items         []LineItem    `json:"items"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	IsPaid        bool          `json:"is_paid"`
	DrinksServed  bool          `json:"drinks_served"`
	TotalAmount   float64       `json:"total_amount"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	HashActual    string        `json:"hash_actual,omitempty"`
	HashAnterior  string        `json:"hash_anterior,omitempty"`
}

// AggregateStatus derives the order-level status from its items: cooking the
// moment any item has left pending, ready once every non-beverage item is
// ready. Delivering and served are explicit staff transitions, never derived.
func AggregateStatus(items []LineItem) OrderStatus {
	if len(items) == 0 {
		return OrderPending
	}
	anyStarted := false
	allReady := true
	allFoodReady := true
	hasFood := false
	for _, it := range items {
		if it.Status != ItemPending {
			anyStarted = true
		}
		if it.Status != ItemReady {
			allReady = false
		}
		if !it.IsBeverage() {
			hasFood = true
			if it.Status != ItemReady {
				allFoodReady = false
			}
		}
	}
	// Drinks-only orders have no food gate; they are ready when every item is.
	if (hasFood && allFoodReady) || (!hasFood && allReady) {
		return OrderReady
	}
	if anyStarted {
		return OrderCooking
	}
	return OrderPending
}

// Active reports whether the order still belongs in active projections.
func (o *Order) Active() bool {
	return o.Status != OrderServed
}
