package feed

import (
	"encoding/json"

	"comanda/internal/domain/models"
)

// Watched tables. Every committed write to one of these fans out to all
// subscribed surfaces.
const (
	TableOrders       = "orders"
	TableWaiterCalls  = "waiter_calls"
	TableReservations = "reservations"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event is one row-level change as pushed over the feed. Rows travel as raw
// JSON so a single event shape covers every watched table.
type Event struct {
	Op     Op              `json:"operation"`
	Table  string          `json:"table"`
	Before json.RawMessage `json:"row_before,omitempty"`
	After  json.RawMessage `json:"row_after,omitempty"`
}

// OrderEvent builds a feed event for the orders table.
func OrderEvent(op Op, before, after *models.Order) Event {
	ev := Event{Op: op, Table: TableOrders}
	if before != nil {
		ev.Before = marshalRow(before)
	}
	if after != nil {
		ev.After = marshalRow(after)
	}
	return ev
}

// CallEvent builds a feed event for the waiter-calls table.
func CallEvent(op Op, before, after *models.WaiterCall) Event {
	ev := Event{Op: op, Table: TableWaiterCalls}
	if before != nil {
		ev.Before = marshalRow(before)
	}
	if after != nil {
		ev.After = marshalRow(after)
	}
	return ev
}

// ReservationEvent builds a feed event for the reservations table.
func ReservationEvent(op Op, before, after *models.Reservation) Event {
	ev := Event{Op: op, Table: TableReservations}
	if before != nil {
		ev.Before = marshalRow(before)
	}
	if after != nil {
		ev.After = marshalRow(after)
	}
	return ev
}

func marshalRow(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// DecodeOrder unpacks an order row from an event side; nil if absent.
func DecodeOrder(raw json.RawMessage) (*models.Order, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// DecodeReservation unpacks a reservation row from an event side; nil if absent.
func DecodeReservation(raw json.RawMessage) (*models.Reservation, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var res models.Reservation
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DecodeCall unpacks a waiter-call row from an event side; nil if absent.
func DecodeCall(raw json.RawMessage) (*models.WaiterCall, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var c models.WaiterCall
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
