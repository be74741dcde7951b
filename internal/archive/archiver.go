// Package archive implements the liberate/archive composite operation: stock
// deduction, the terminal served transition and the ledger append for every
// active order on a table.
package archive

import (
	"context"
	"errors"

	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/pkg/logger"
)

// StockDeducter is the external stock collaborator, invoked once per order
// during archive. Failures are logged and never block the archive.
type StockDeducter interface {
	DeductStock(ctx context.Context, orderID string) error
}

type Orders interface {
	ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error)
	// MarkServed must report done=false when the order was already served,
	// so racing callers degrade to no-ops.
	MarkServed(ctx context.Context, id string) (order models.Order, done bool, err error)
}

type Auditor interface {
	Append(ctx context.Context, payload any) (models.AuditLogEntry, error)
}

type Publisher interface {
	PublishChange(ctx context.Context, table string, ev feed.Event) error
}

// Archiver liberates tables. Both floor staff and the expiry sweeper call it,
// possibly at the same time; the whole operation is idempotent.
type Archiver struct {
	orders Orders
	stock  StockDeducter
	audit  Auditor
	pub    Publisher
	mylog  logger.Logger
}

func NewArchiver(orders Orders, stock StockDeducter, audit Auditor, pub Publisher, mylog logger.Logger) *Archiver {
	return &Archiver{orders: orders, stock: stock, audit: audit, pub: pub, mylog: mylog}
}

// LiberateTable archives every active order on the table: deduct stock once
// per order (best-effort), mark it served, chain the event into the audit
// ledger and fan the update out. Calling it on a table with no active orders
// is a safe no-op.
func (a *Archiver) LiberateTable(ctx context.Context, tableNumber int) error {
	mylog := a.mylog.Action("liberate_table").With("table", tableNumber)

	active, err := a.orders.ListActive(ctx, &tableNumber)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		mylog.Debug("No active orders, nothing to liberate")
		return nil
	}

	var errs []error
	for _, order := range active {
		if a.stock != nil {
			if err := a.stock.DeductStock(ctx, order.ID); err != nil {
				// Best-effort collaborator: attempted once, failure logged.
				mylog.Action("stock_deduction_failed").Error("Stock deduction failed, archiving anyway", err, "order_id", order.ID)
			}
		}

		served, done, err := a.orders.MarkServed(ctx, order.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !done {
			// Another actor served it between the list and the write.
			continue
		}

		if _, err := a.audit.Append(ctx, map[string]any{
			"event":        "table_liberated",
			"order_id":     served.ID,
			"table_number": tableNumber,
			"total_amount": served.TotalAmount,
		}); err != nil {
			mylog.Action("audit_append_failed").Error("Ledger append failed for liberation", err, "order_id", served.ID)
		}

		before := order
		if a.pub != nil {
			if err := a.pub.PublishChange(ctx, feed.TableOrders, feed.OrderEvent(feed.OpUpdate, &before, &served)); err != nil {
				mylog.Action("feed_publish_failed").Error("Change event lost, resync will cover", err)
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	mylog.Info("Table liberated", "orders", len(active))
	return nil
}
