package surface

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"comanda/internal/audit"
	"comanda/internal/config"
	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/notify"
	"comanda/internal/reconcile"
	"comanda/internal/service"
	"comanda/internal/store"
	"comanda/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ExecuteKitchen runs the kitchen display: all active orders, item alerts,
// and the advance operation for the cooks (driven from stdin).
func ExecuteKitchen(ctx context.Context, mylog logger.Logger, args []string) error {
	fs := flag.NewFlagSet("kitchen", flag.ContinueOnError)
	configPath := fs.String("config-path", "config.yaml", "path to config yaml")
	if err := fs.Parse(args); err != nil {
		return core.ErrParseCmd
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		mylog.Action("config_load_failed").Error("Invalid configuration", err)
		return err
	}

	db, err := store.Start(ctx, cfg.DB, mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	defer db.Close()
	mylog.Action("db_connected").Info("Successful database connection")

	pub, err := feed.NewPublisher(cfg.RMQ, mylog)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	defer pub.Close()
	mylog.Action("mb_connected").Info("Successful message broker connection")

	orderRepo := store.NewOrderRepo(db)
	chain := audit.NewChain(store.NewAuditRepo(db), mylog)
	orders := service.NewOrderService(orderRepo, db, chain, pub, mylog)

	sub := feed.NewSubscriber(cfg.RMQ, feed.TableOrders, cfg.Timers.ReconnectBackoff(), mylog)
	dedup := notify.New()
	rec := reconcile.New(orderRepo, dedup, sub.Events(), reconcilerOptions(cfg, nil), logAlert(mylog), mylog)

	kitchen := &kitchenTerminal{orders: orders, rec: rec, mylog: mylog}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sub.Run(gctx) })
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return watchConnectivity(gctx, sub, mylog) })
	g.Go(func() error { return kitchen.readLoop(gctx) })
	return g.Wait()
}

type kitchenTerminal struct {
	orders *service.OrderService
	rec    *reconcile.Reconciler
	mylog  logger.Logger
}

// readLoop drives the kitchen from stdin:
//
//	orders                  print the active projection
//	advance <order> <item>  advance one line item a step
//	deliver <order>         mark an order on the way
func (k *kitchenTerminal) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "orders":
			for _, o := range k.rec.Snapshot() {
				fmt.Printf("table %d  %s  [%s]  items=%d\n", o.TableNumber, o.ID, o.Status, len(o.Items))
			}
		case "advance":
			if len(fields) != 3 {
				fmt.Println("usage: advance <order-id> <item-index>")
				continue
			}
			index, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Println("item index must be an integer")
				continue
			}
			k.advance(ctx, fields[1], index)
		case "deliver":
			if len(fields) != 2 {
				fmt.Println("usage: deliver <order-id>")
				continue
			}
			k.deliver(ctx, fields[1])
		default:
			fmt.Println("commands: orders | advance <order-id> <item-index> | deliver <order-id>")
		}
	}
	return scanner.Err()
}

// advance applies the step optimistically and issues the backing write
// through the reconciler loop, so a failure discards the speculation.
func (k *kitchenTerminal) advance(ctx context.Context, orderID string, index int) {
	err := k.rec.Mutate(ctx,
		func(orders []models.Order) []models.Order {
			out := append([]models.Order{}, orders...)
			for i := range out {
				if out[i].ID != orderID || index < 0 || index >= len(out[i].Items) {
					continue
				}
				items := append([]models.LineItem{}, out[i].Items...)
				items[index].Status = models.NextItemStatus(items[index].Status)
				out[i].Items = items
				if derived := models.AggregateStatus(items); models.StatusRank(derived) > models.StatusRank(out[i].Status) {
					out[i].Status = derived
				}
			}
			return out
		},
		func(ctx context.Context) error {
			_, err := k.orders.AdvanceItem(ctx, orderID, index)
			return err
		},
	)
	if err != nil {
		// Transient: the projection was already restored by resync.
		fmt.Printf("advance failed, projection refreshed: %v\n", err)
	}
}

func (k *kitchenTerminal) deliver(ctx context.Context, orderID string) {
	err := k.rec.Mutate(ctx,
		func(orders []models.Order) []models.Order {
			out := append([]models.Order{}, orders...)
			for i := range out {
				if out[i].ID == orderID && models.StatusRank(out[i].Status) < models.StatusRank(models.OrderDelivering) {
					out[i].Status = models.OrderDelivering
				}
			}
			return out
		},
		func(ctx context.Context) error {
			_, err := k.orders.MarkDelivering(ctx, orderID)
			return err
		},
	)
	if err != nil {
		fmt.Printf("deliver failed, projection refreshed: %v\n", err)
	}
}
