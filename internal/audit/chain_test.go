package audit

import (
	"context"
	"encoding/json"
	"testing"

	"comanda/internal/domain/models"
	"comanda/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	entries []models.AuditLogEntry
}

func (m *memRepo) TailHash(ctx context.Context, tx pgx.Tx) (string, bool, error) {
	if len(m.entries) == 0 {
		return "", false, nil
	}
	return m.entries[len(m.entries)-1].HashActual, true, nil
}

func (m *memRepo) Append(ctx context.Context, tx pgx.Tx, e *models.AuditLogEntry) error {
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) ListAll(ctx context.Context) ([]models.AuditLogEntry, error) {
	return m.entries, nil
}

func TestAppendChainsOffGenesis(t *testing.T) {
	repo := &memRepo{}
	chain := NewChain(repo, logger.Discard())

	entry, err := chain.Append(context.Background(), map[string]string{"event": "order_created"})
	require.NoError(t, err)

	assert.Equal(t, GenesisHash, entry.HashAnterior)
	assert.Equal(t, HashEntry(entry.Payload, GenesisHash), entry.HashActual)
}

func TestAppendLinksToPreviousEntry(t *testing.T) {
	repo := &memRepo{}
	chain := NewChain(repo, logger.Discard())

	a, err := chain.Append(context.Background(), map[string]string{"event": "a"})
	require.NoError(t, err)
	b, err := chain.Append(context.Background(), map[string]string{"event": "b"})
	require.NoError(t, err)

	assert.Equal(t, a.HashActual, b.HashAnterior)
}

func TestVerifyCleanChain(t *testing.T) {
	repo := &memRepo{}
	chain := NewChain(repo, logger.Discard())

	for _, ev := range []string{"a", "b", "c"} {
		_, err := chain.Append(context.Background(), map[string]string{"event": ev})
		require.NoError(t, err)
	}

	mismatches, err := chain.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestVerifyReportsMutatedEntryAndDescendants(t *testing.T) {
	repo := &memRepo{}
	chain := NewChain(repo, logger.Discard())

	for _, ev := range []string{"a", "b", "c"} {
		_, err := chain.Append(context.Background(), map[string]string{"event": ev})
		require.NoError(t, err)
	}

	// Tamper with B's stored payload out-of-band.
	repo.entries[1].Payload = json.RawMessage(`{"event":"b","amount":9999}`)

	mismatches, err := chain.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, mismatches, 2)
	assert.Equal(t, 1, mismatches[0].Index)
	assert.Equal(t, 2, mismatches[1].Index)
}

func TestVerifyEmptyLedger(t *testing.T) {
	chain := NewChain(&memRepo{}, logger.Discard())
	mismatches, err := chain.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}
