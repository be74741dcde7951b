// Package audit maintains the tamper-evident ledger: every entry's hash
// covers its own payload plus the previous entry's hash, so the full chain
// can be recomputed forward from the genesis sentinel and compared against
// what is stored.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"comanda/internal/domain/models"
	"comanda/pkg/logger"

	"github.com/jackc/pgx/v5"
)

// GenesisHash is the sentinel the first entry chains off.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Repo persists ledger entries. TailHash and Append take the caller's open
// transaction, or nil when the entry stands alone.
type Repo interface {
	TailHash(ctx context.Context, tx pgx.Tx) (hash string, ok bool, err error)
	Append(ctx context.Context, tx pgx.Tx, e *models.AuditLogEntry) error
	ListAll(ctx context.Context) ([]models.AuditLogEntry, error)
}

// Chain appends entries on the write path only; it never verifies there.
// Verification is a separate out-of-band pass.
type Chain struct {
	repo  Repo
	mylog logger.Logger

	// Serializes read-tail-then-append so two writers in one process cannot
	// both chain off the same tail.
	mu sync.Mutex
}

func NewChain(repo Repo, mylog logger.Logger) *Chain {
	return &Chain{repo: repo, mylog: mylog}
}

// HashEntry computes the link hash: sha256 over the serialized payload
// concatenated with the previous hash, hex encoded.
func HashEntry(payload []byte, prevHash string) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Append writes one ledger entry for a fiscally relevant event.
func (c *Chain) Append(ctx context.Context, payload any) (models.AuditLogEntry, error) {
	return c.append(ctx, nil, payload)
}

// AppendIn chains one entry inside the caller's transaction, so the entry
// commits and rolls back together with the write it describes.
func (c *Chain) AppendIn(ctx context.Context, tx pgx.Tx, payload any) (models.AuditLogEntry, error) {
	return c.append(ctx, tx, payload)
}

func (c *Chain) append(ctx context.Context, tx pgx.Tx, payload any) (models.AuditLogEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.AuditLogEntry{}, fmt.Errorf("marshal audit payload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok, err := c.repo.TailHash(ctx, tx)
	if err != nil {
		return models.AuditLogEntry{}, err
	}
	if !ok {
		prev = GenesisHash
	}

	entry := models.AuditLogEntry{
		Payload:      raw,
		HashAnterior: prev,
		HashActual:   HashEntry(raw, prev),
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.repo.Append(ctx, tx, &entry); err != nil {
		return models.AuditLogEntry{}, err
	}

	c.mylog.Action("audit_appended").Debug("Ledger entry appended", "hash", entry.HashActual)
	return entry, nil
}

// Mismatch describes one ledger entry whose recomputed hash disagrees with
// what is stored. A mutated ancestor poisons every descendant, so all of them
// are reported.
type Mismatch struct {
	Index        int    `json:"index"`
	EntryID      int64  `json:"entry_id"`
	StoredHash   string `json:"stored_hash"`
	ComputedHash string `json:"computed_hash"`
}

// Verify recomputes the whole chain forward from the genesis sentinel and
// reports every entry that disagrees. It never repairs anything.
func (c *Chain) Verify(ctx context.Context) ([]Mismatch, error) {
	entries, err := c.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	mismatches := []Mismatch{}
	prev := GenesisHash
	for i, e := range entries {
		computed := HashEntry(e.Payload, prev)
		if computed != e.HashActual || e.HashAnterior != prev {
			mismatches = append(mismatches, Mismatch{
				Index:        i,
				EntryID:      e.ID,
				StoredHash:   e.HashActual,
				ComputedHash: computed,
			})
		}
		prev = computed
	}

	if len(mismatches) > 0 {
		c.mylog.Action("audit_verify_failed").Warn("Ledger integrity violation detected", "suspect_entries", len(mismatches))
	}
	return mismatches, nil
}
