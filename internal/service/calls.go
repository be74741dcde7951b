package service

import (
	"context"
	"time"

	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/pkg/logger"

	"github.com/google/uuid"
)

type CallStore interface {
	Create(ctx context.Context, c *models.WaiterCall) error
	Get(ctx context.Context, id string) (models.WaiterCall, error)
	Attend(ctx context.Context, id string) (models.WaiterCall, bool, error)
	ListPending(ctx context.Context) ([]models.WaiterCall, error)
}

// CallService handles the waiter-call lifecycle: created pending by a
// customer surface, attended (terminal) by a staff surface.
type CallService struct {
	calls CallStore
	pub   Publisher
	mylog logger.Logger
}

func NewCallService(calls CallStore, pub Publisher, mylog logger.Logger) *CallService {
	return &CallService{calls: calls, pub: pub, mylog: mylog}
}

func (s *CallService) Create(ctx context.Context, tableNumber int) (models.WaiterCall, error) {
	call := models.WaiterCall{
		ID:          uuid.NewString(),
		TableNumber: tableNumber,
		Status:      models.CallPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.calls.Create(ctx, &call); err != nil {
		s.mylog.Action("create_call_failed").Error("Failed to create waiter call", err)
		return models.WaiterCall{}, err
	}

	s.publishCall(ctx, feed.CallEvent(feed.OpInsert, nil, &call))
	s.mylog.Action("call_created").Info("Waiter call created", "table", tableNumber)
	return call, nil
}

// Attend resolves a call. Already-attended calls are a no-op.
func (s *CallService) Attend(ctx context.Context, id string) (models.WaiterCall, error) {
	call, changed, err := s.calls.Attend(ctx, id)
	if err != nil {
		s.mylog.Action("attend_call_failed").Error("Failed to attend waiter call", err)
		return models.WaiterCall{}, err
	}
	if !changed {
		return s.calls.Get(ctx, id)
	}

	before := call
	before.Status = models.CallPending
	s.publishCall(ctx, feed.CallEvent(feed.OpUpdate, &before, &call))
	s.mylog.Action("call_attended").Info("Waiter call attended", "table", call.TableNumber)
	return call, nil
}

func (s *CallService) ListPending(ctx context.Context) ([]models.WaiterCall, error) {
	return s.calls.ListPending(ctx)
}

func (s *CallService) publishCall(ctx context.Context, ev feed.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishChange(ctx, ev.Table, ev); err != nil {
		s.mylog.Action("feed_publish_failed").Error("Change event lost, resync will cover", err)
	}
}
