package models

import "time"

type CallStatus string

const (
	CallPending  CallStatus = "pending"
	CallAttended CallStatus = "attended"
)

// WaiterCall is an ephemeral request for staff attention at a table. Attended
// is terminal; attended calls drop out of active projections.
type WaiterCall struct {
	ID          string     `json:"id"`
	TableNumber int        `json:"table_number"`
	Status      CallStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
