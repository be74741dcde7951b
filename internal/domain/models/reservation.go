package models

import "time"

type ReservationStatus string

const (
	ReservationBooked    ReservationStatus = "booked"
	ReservationSeated    ReservationStatus = "seated"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is a booked table slot. Seated and cancelled are both terminal;
// only booked reservations stay on the dashboard.
type Reservation struct {
	ID           string            `json:"id"`
	TableNumber  int               `json:"table_number"`
	CustomerName string            `json:"customer_name"`
	PartySize    int               `json:"party_size"`
	ReservedFor  time.Time         `json:"reserved_for"`
	Status       ReservationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}
