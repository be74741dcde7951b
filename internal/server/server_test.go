package server

import (
	"context"
	"errors"
	"testing"

	"comanda/internal/domain/models"
	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	orders []models.Order
	err    error
	ctx    context.Context
}

func (m *mockLister) ListActive(ctx context.Context, table *int) ([]models.Order, error) {
	m.ctx = ctx
	return m.orders, m.err
}

func TestStoreSnapshotBoundsEachRead(t *testing.T) {
	lister := &mockLister{orders: []models.Order{{ID: "o1"}}}
	snapshot := storeSnapshot(context.Background(), lister, logger.Discard())

	got := snapshot()
	assert.Len(t, got, 1)

	require.NotNil(t, lister.ctx)
	_, bounded := lister.ctx.Deadline()
	assert.True(t, bounded, "snapshot read must carry its own deadline")
}

func TestStoreSnapshotSkipsSweepOnReadFailure(t *testing.T) {
	lister := &mockLister{err: errors.New("connection reset")}
	snapshot := storeSnapshot(context.Background(), lister, logger.Discard())
	assert.Nil(t, snapshot())
}
