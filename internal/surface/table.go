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
	"comanda/internal/feed"
	"comanda/internal/notify"
	"comanda/internal/reconcile"
	"comanda/internal/service"
	"comanda/internal/store"
	"comanda/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ExecuteTable runs the per-table terminal: the table's own orders, ordering
// from stdin, and the waiter-call button. Its reconciler is scoped to one
// table, so feed traffic from other tables never touches its projection.
func ExecuteTable(ctx context.Context, mylog logger.Logger, args []string) error {
	fs := flag.NewFlagSet("table", flag.ContinueOnError)
	configPath := fs.String("config-path", "config.yaml", "path to config yaml")
	tableNumber := fs.Int("table", 0, "table number this terminal belongs to")
	if err := fs.Parse(args); err != nil {
		return core.ErrParseCmd
	}
	if *tableNumber <= 0 {
		return fmt.Errorf("%w: table", core.ErrFieldIsEmpty)
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
	calls := service.NewCallService(store.NewWaiterCallRepo(db), pub, mylog)

	sub := feed.NewSubscriber(cfg.RMQ, feed.TableOrders, cfg.Timers.ReconnectBackoff(), mylog)
	dedup := notify.New()
	rec := reconcile.New(orderRepo, dedup, sub.Events(), reconcilerOptions(cfg, tableNumber), logAlert(mylog), mylog)

	term := &tableTerminal{table: *tableNumber, orders: orders, calls: calls, rec: rec}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sub.Run(gctx) })
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return watchConnectivity(gctx, sub, mylog) })
	g.Go(func() error { return term.readLoop(gctx) })
	return g.Wait()
}

type tableTerminal struct {
	table  int
	orders *service.OrderService
	calls  *service.CallService
	rec    *reconcile.Reconciler
}

// readLoop drives the table terminal from stdin:
//
//	orders                        print this table's active orders
//	order <total> <item>[,...]    place an order; items are name:qty:category
//	call                          call a waiter to the table
func (t *tableTerminal) readLoop(ctx context.Context) error {
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
			for _, o := range t.rec.Snapshot() {
				fmt.Printf("%s  [%s]  items=%d  total=%.2f\n", o.ID, o.Status, len(o.Items), o.TotalAmount)
			}
		case "order":
			if len(fields) < 3 {
				fmt.Println("usage: order <total> <name:qty:category>[ <name:qty:category> ...]")
				continue
			}
			t.place(ctx, fields[1], fields[2:])
		case "call":
			if _, err := t.calls.Create(ctx, t.table); err != nil {
				fmt.Printf("call failed: %v\n", err)
			} else {
				fmt.Println("waiter called")
			}
		default:
			fmt.Println("commands: orders | order <total> <name:qty:category>... | call")
		}
	}
	return scanner.Err()
}

func (t *tableTerminal) place(ctx context.Context, total string, rawItems []string) {
	amount, err := strconv.ParseFloat(total, 64)
	if err != nil {
		fmt.Println("total must be a number")
		return
	}

	req := service.CreateOrderRequest{TableNumber: t.table, TotalAmount: amount}
	for _, raw := range rawItems {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			fmt.Printf("bad item %q, want name:qty:category\n", raw)
			return
		}
		qty, err := strconv.Atoi(parts[1])
		if err != nil || qty <= 0 {
			fmt.Printf("bad quantity in %q\n", raw)
			return
		}
		req.Items = append(req.Items, service.CreateItemRequest{Name: parts[0], Qty: qty, Category: parts[2]})
	}

	order, err := t.orders.Create(ctx, req)
	if err != nil {
		fmt.Printf("order failed: %v\n", err)
		return
	}
	// The projection picks the order up from the feed event; no local splice.
	fmt.Printf("order placed: %s\n", order.ID)
}
