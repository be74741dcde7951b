// Package service implements the order lifecycle: the state machine driving
// order and line-item status, and the waiter-call flow. Every transition is
// staff- or timer-triggered and monotonic; nothing here ever lowers a status.
package service

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/store"
	"comanda/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	CreateIn(ctx context.Context, tx pgx.Tx, o *models.Order) error
	Get(ctx context.Context, id string) (models.Order, error)
	ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error)
	UpdateItems(ctx context.Context, id string, items []models.LineItem, patch store.FieldPatch) (models.Order, error)
	UpdateFields(ctx context.Context, id string, patch store.FieldPatch) (models.Order, error)
	UpdateFieldsIn(ctx context.Context, tx pgx.Tx, id string, patch store.FieldPatch) (models.Order, error)
}

// TxRunner spans the ledger append and the order write it describes, so
// neither can commit without the other.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type Auditor interface {
	AppendIn(ctx context.Context, tx pgx.Tx, payload any) (models.AuditLogEntry, error)
}

type Publisher interface {
	PublishChange(ctx context.Context, table string, ev feed.Event) error
}

type OrderService struct {
	orders OrderStore
	tx     TxRunner
	audit  Auditor
	pub    Publisher
	mylog  logger.Logger
	now    func() time.Time
}

func NewOrderService(orders OrderStore, tx TxRunner, audit Auditor, pub Publisher, mylog logger.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		tx:     tx,
		audit:  audit,
		pub:    pub,
		mylog:  mylog,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderRequest struct {
	TableNumber   int                  `json:"table_number"`
	Items         []CreateItemRequest  `json:"items"`
	TotalAmount   float64              `json:"total_amount"`
	PaymentMethod models.PaymentMethod `json:"payment_method,omitempty"`
	CustomerID    string               `json:"customer_id,omitempty"`
}

type CreateItemRequest struct {
	Name     string `json:"name"`
	Qty      int    `json:"qty"`
	Category string `json:"category"`
}

// Create opens a new ticket with every item pending. When a payment method is
// present the creation is fiscally relevant: it is chained into the audit
// ledger and the order row carries the entry's hashes.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (models.Order, error) {
	mylog := s.mylog.Action("create_order")

	if err := validateCreate(req); err != nil {
		return models.Order{}, err
	}

	now := s.now()
	order := models.Order{
		ID:            uuid.NewString(),
		TableNumber:   req.TableNumber,
		Status:        models.OrderPending,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   req.TotalAmount,
		CustomerID:    req.CustomerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, models.LineItem{
			Name:     it.Name,
			Qty:      it.Qty,
			Category: it.Category,
			Status:   models.ItemPending,
		})
	}

	if req.PaymentMethod != "" {
		// Fiscally relevant: the ledger entry and the order row commit
		// together or not at all.
		err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
			entry, err := s.audit.AppendIn(ctx, tx, map[string]any{
				"event":          "order_created",
				"order_id":       order.ID,
				"table_number":   order.TableNumber,
				"total_amount":   order.TotalAmount,
				"payment_method": string(order.PaymentMethod),
			})
			if err != nil {
				return fmt.Errorf("audit order creation: %w", err)
			}
			order.HashActual = entry.HashActual
			order.HashAnterior = entry.HashAnterior
			return s.orders.CreateIn(ctx, tx, &order)
		})
		if err != nil {
			mylog.Error("Failed to save order", err)
			return models.Order{}, err
		}
	} else if err := s.orders.Create(ctx, &order); err != nil {
		mylog.Error("Failed to save order", err)
		return models.Order{}, err
	}

	s.publish(ctx, feed.OrderEvent(feed.OpInsert, nil, &order))
	mylog.Info("Order created", "order_id", order.ID, "table", order.TableNumber, "items", len(order.Items))
	return order, nil
}

// AdvanceItem moves one line item a single step along pending→cooking→ready
// and recomputes the aggregate order status. Advancing an item that is
// already ready is a no-op, not an error.
//
// The write puts back the whole items sequence (read-modify-write); see
// OrderRepo.UpdateItems for the concurrency caveat.
func (s *OrderService) AdvanceItem(ctx context.Context, orderID string, index int) (models.Order, error) {
	mylog := s.mylog.Action("advance_item")

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if index < 0 || index >= len(order.Items) {
		return models.Order{}, core.ErrItemIndex
	}

	item := order.Items[index]
	next := models.NextItemStatus(item.Status)
	if next == item.Status {
		mylog.Debug("Item already ready, nothing to advance", "order_id", orderID, "item", index)
		return order, nil
	}

	before := order
	items := make([]models.LineItem, len(order.Items))
	copy(items, order.Items)
	items[index].Status = next
	if next == models.ItemReady {
		items[index].IsReady = true
	}

	patch := store.FieldPatch{}
	if derived := models.AggregateStatus(items); models.StatusRank(derived) > models.StatusRank(order.Status) {
		patch.Status = &derived
	}

	updated, err := s.orders.UpdateItems(ctx, orderID, items, patch)
	if err != nil {
		mylog.Error("Failed to advance item", err, "order_id", orderID, "item", index)
		return models.Order{}, err
	}

	s.publish(ctx, feed.OrderEvent(feed.OpUpdate, &before, &updated))
	mylog.Info("Item advanced", "order_id", orderID, "item", index, "status", string(next))
	return updated, nil
}

// MarkDelivering is the staff "on the way" batch action over an order's ready
// items. Calling it on an order already at delivering or beyond is a no-op.
func (s *OrderService) MarkDelivering(ctx context.Context, orderID string) (models.Order, error) {
	mylog := s.mylog.Action("mark_delivering")

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if models.StatusRank(order.Status) >= models.StatusRank(models.OrderDelivering) {
		return order, nil
	}

	before := order
	status := models.OrderDelivering
	updated, err := s.orders.UpdateFields(ctx, orderID, store.FieldPatch{Status: &status})
	if err != nil {
		mylog.Error("Failed to mark delivering", err, "order_id", orderID)
		return models.Order{}, err
	}

	s.publish(ctx, feed.OrderEvent(feed.OpUpdate, &before, &updated))
	mylog.Info("Order on the way", "order_id", orderID)
	return updated, nil
}

// MarkDrinksServed flips drinks_served and marks every beverage item served.
// The flag only ever goes false→true.
func (s *OrderService) MarkDrinksServed(ctx context.Context, orderID string) (models.Order, error) {
	mylog := s.mylog.Action("mark_drinks_served")

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.DrinksServed {
		return order, nil
	}

	before := order
	items := make([]models.LineItem, len(order.Items))
	copy(items, order.Items)
	for i := range items {
		if items[i].IsBeverage() {
			items[i].Status = models.ItemReady
			items[i].IsReady = true
			items[i].IsServed = true
		}
	}

	served := true
	updated, err := s.orders.UpdateItems(ctx, orderID, items, store.FieldPatch{DrinksServed: &served})
	if err != nil {
		mylog.Error("Failed to mark drinks served", err, "order_id", orderID)
		return models.Order{}, err
	}

	s.publish(ctx, feed.OrderEvent(feed.OpUpdate, &before, &updated))
	mylog.Info("Drinks served", "order_id", orderID)
	return updated, nil
}

// SettleDebt records payment for an order and chains it into the audit
// ledger.
func (s *OrderService) SettleDebt(ctx context.Context, orderID string, method models.PaymentMethod) (models.Order, error) {
	mylog := s.mylog.Action("settle_debt")

	if !method.Valid() {
		return models.Order{}, fmt.Errorf("%w: payment method %q", core.ErrFieldIsEmpty, method)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.IsPaid {
		return order, nil
	}

	before := order
	paid := true
	paidAt := s.now()

	var updated models.Order
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.audit.AppendIn(ctx, tx, map[string]any{
			"event":          "debt_settled",
			"order_id":       order.ID,
			"table_number":   order.TableNumber,
			"total_amount":   order.TotalAmount,
			"payment_method": string(method),
		}); err != nil {
			return fmt.Errorf("audit debt settlement: %w", err)
		}
		updated, err = s.orders.UpdateFieldsIn(ctx, tx, orderID, store.FieldPatch{
			PaymentMethod: &method,
			IsPaid:        &paid,
			PaidAt:        &paidAt,
		})
		return err
	})
	if err != nil {
		mylog.Error("Failed to settle debt", err, "order_id", orderID)
		return models.Order{}, err
	}

	s.publish(ctx, feed.OrderEvent(feed.OpUpdate, &before, &updated))
	mylog.Info("Debt settled", "order_id", orderID, "method", string(method))
	return updated, nil
}

func (s *OrderService) ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error) {
	return s.orders.ListActive(ctx, tableNumber)
}

// publish is best-effort: a missed event is healed by the next silent resync,
// so feed failures never abort the write that already committed.
func (s *OrderService) publish(ctx context.Context, ev feed.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishChange(ctx, ev.Table, ev); err != nil {
		s.mylog.Action("feed_publish_failed").Error("Change event lost, resync will cover", err)
	}
}

func validateCreate(req CreateOrderRequest) error {
	if req.TableNumber <= 0 {
		return fmt.Errorf("invalid table number: %d", req.TableNumber)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: items", core.ErrFieldIsEmpty)
	}
	for i, it := range req.Items {
		if it.Name == "" {
			return fmt.Errorf("%w: item %d name", core.ErrFieldIsEmpty, i+1)
		}
		if it.Qty < 1 {
			return fmt.Errorf("item %d: qty must be at least 1, got %d", i+1, it.Qty)
		}
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return fmt.Errorf("unknown payment method: %s", req.PaymentMethod)
	}
	return nil
}
