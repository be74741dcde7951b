package service

import (
	"context"
	"testing"

	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCallStore struct {
	calls map[string]models.WaiterCall
}

func newMockCallStore() *mockCallStore {
	return &mockCallStore{calls: make(map[string]models.WaiterCall)}
}

func (m *mockCallStore) Create(ctx context.Context, c *models.WaiterCall) error {
	m.calls[c.ID] = *c
	return nil
}

func (m *mockCallStore) Get(ctx context.Context, id string) (models.WaiterCall, error) {
	return m.calls[id], nil
}

func (m *mockCallStore) Attend(ctx context.Context, id string) (models.WaiterCall, bool, error) {
	call, ok := m.calls[id]
	if !ok || call.Status != models.CallPending {
		return models.WaiterCall{}, false, nil
	}
	call.Status = models.CallAttended
	m.calls[id] = call
	return call, true, nil
}

func (m *mockCallStore) ListPending(ctx context.Context) ([]models.WaiterCall, error) {
	var out []models.WaiterCall
	for _, c := range m.calls {
		if c.Status == models.CallPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestCallCreatePublishesPending(t *testing.T) {
	repo := newMockCallStore()
	pub := &mockPublisher{}
	svc := NewCallService(repo, pub, logger.Discard())

	call, err := svc.Create(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, models.CallPending, call.Status)
	assert.Equal(t, 7, call.TableNumber)
	require.Len(t, pub.events, 1)
	assert.Equal(t, feed.TableWaiterCalls, pub.events[0].Table)
	assert.Equal(t, feed.OpInsert, pub.events[0].Op)
}

func TestCallAttendIsTerminal(t *testing.T) {
	repo := newMockCallStore()
	pub := &mockPublisher{}
	svc := NewCallService(repo, pub, logger.Discard())

	call, err := svc.Create(context.Background(), 7)
	require.NoError(t, err)

	attended, err := svc.Attend(context.Background(), call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallAttended, attended.Status)
	require.Len(t, pub.events, 2)
	assert.Equal(t, feed.OpUpdate, pub.events[1].Op)
}

func TestCallAttendTwiceNoSecondEvent(t *testing.T) {
	repo := newMockCallStore()
	pub := &mockPublisher{}
	svc := NewCallService(repo, pub, logger.Discard())

	call, err := svc.Create(context.Background(), 7)
	require.NoError(t, err)

	_, err = svc.Attend(context.Background(), call.ID)
	require.NoError(t, err)

	again, err := svc.Attend(context.Background(), call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallAttended, again.Status)
	assert.Len(t, pub.events, 2)
}
