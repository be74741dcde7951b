// Package surface wires the client terminals: each one owns a change-feed
// subscription, a reconciler with its local projection, and whatever timers
// its role needs. One logical actor per surface; all of its mutations go
// through its own reconciler loop.
package surface

import (
	"context"
	"time"

	"comanda/internal/config"
	"comanda/internal/feed"
	"comanda/internal/reconcile"
	"comanda/pkg/logger"
)

// logAlert renders deduplicated notifications for a terminal surface. For a
// headless process the structured log line IS the user-facing alert.
func logAlert(mylog logger.Logger) func(reconcile.Notification) {
	alerts := mylog.Action("alert")
	return func(n reconcile.Notification) {
		if n.ItemIndex < 0 {
			alerts.Info("Order status changed", "order_id", n.OrderID, "table", n.TableNumber, "status", n.Status)
			return
		}
		alerts.Info("Item status changed", "order_id", n.OrderID, "table", n.TableNumber, "item", n.ItemName, "status", n.Status)
	}
}

// watchConnectivity logs the passive disconnected indicator whenever the
// feed subscription drops or comes back.
func watchConnectivity(ctx context.Context, sub *feed.Subscriber, mylog logger.Logger) error {
	mylog = mylog.Action("feed_connectivity")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := sub.Connected()
			if now != last {
				if now {
					mylog.Info("Change feed connected")
				} else {
					mylog.Warn("Change feed disconnected, serving last-known projection")
				}
				last = now
			}
		}
	}
}

func reconcilerOptions(cfg *config.Config, table *int) reconcile.Options {
	return reconcile.Options{
		Table:          table,
		ResyncInterval: cfg.Timers.ResyncInterval(),
	}
}
