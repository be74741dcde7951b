package models

import (
	"encoding/json"
	"time"
)

// AuditLogEntry is one link of the tamper-evident ledger. HashActual covers
// the payload plus HashAnterior, so altering any stored payload breaks the
// recomputed hash of that entry and of every descendant.
type AuditLogEntry struct {
	ID           int64           `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	HashAnterior string          `json:"hash_anterior"`
	HashActual   string          `json:"hash_actual"`
	CreatedAt    time.Time       `json:"created_at"`
}
