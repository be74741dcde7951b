package surface

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"comanda/internal/archive"
	"comanda/internal/audit"
	"comanda/internal/config"
	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/notify"
	"comanda/internal/reconcile"
	"comanda/internal/service"
	"comanda/internal/stock"
	"comanda/internal/store"
	"comanda/internal/sweeper"
	"comanda/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ExecuteDashboard runs the floor dashboard: every active order, pending
// waiter calls, payment and liberation actions, and the expiry sweeper.
func ExecuteDashboard(ctx context.Context, mylog logger.Logger, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
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
	callRepo := store.NewWaiterCallRepo(db)
	resRepo := store.NewReservationRepo(db)
	chain := audit.NewChain(store.NewAuditRepo(db), mylog)
	orders := service.NewOrderService(orderRepo, db, chain, pub, mylog)
	calls := service.NewCallService(callRepo, pub, mylog)
	reservations := service.NewReservationService(resRepo, pub, mylog)
	archiver := archive.NewArchiver(orderRepo, stock.NewClient(cfg.Stock.Address, mylog), chain, pub, mylog)

	orderSub := feed.NewSubscriber(cfg.RMQ, feed.TableOrders, cfg.Timers.ReconnectBackoff(), mylog)
	callSub := feed.NewSubscriber(cfg.RMQ, feed.TableWaiterCalls, cfg.Timers.ReconnectBackoff(), mylog)
	resSub := feed.NewSubscriber(cfg.RMQ, feed.TableReservations, cfg.Timers.ReconnectBackoff(), mylog)

	dedup := notify.New()
	rec := reconcile.New(orderRepo, dedup, orderSub.Events(), reconcilerOptions(cfg, nil), logAlert(mylog), mylog)

	board := newCallBoard(callRepo, callSub.Events(), dedup, cfg.Timers.ResyncInterval(), mylog)
	resBoard := newReservationBoard(resRepo, resSub.Events(), dedup, cfg.Timers.ResyncInterval(), mylog)

	sweep := sweeper.New(sweeper.Options{
		Interval:       cfg.Timers.SweepInterval(),
		PaidServeAfter: cfg.Timers.PaidServeAfter(),
		SuggestAfter:   cfg.Timers.SuggestAfter(),
	}, rec.Snapshot, archiver, func(sg sweeper.Suggestion) {
		mylog.Action("liberation_suggested").Info("Table has been busy a while, consider liberating",
			"table", sg.TableNumber, "age_min", int(sg.Age.Minutes()))
	}, mylog)

	dash := &dashboardTerminal{
		orders:       orders,
		calls:        calls,
		reservations: reservations,
		archiver:     archiver,
		rec:          rec,
		board:        board,
		resBoard:     resBoard,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orderSub.Run(gctx) })
	g.Go(func() error { return callSub.Run(gctx) })
	g.Go(func() error { return resSub.Run(gctx) })
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return board.run(gctx) })
	g.Go(func() error { return resBoard.run(gctx) })
	g.Go(func() error { return sweep.Run(gctx) })
	g.Go(func() error { return watchConnectivity(gctx, orderSub, mylog) })
	g.Go(func() error { return dash.readLoop(gctx) })
	return g.Wait()
}

// callLister is the read side the call board seeds and resyncs from.
type callLister interface {
	ListPending(ctx context.Context) ([]models.WaiterCall, error)
}

// callBoard projects pending waiter calls the same way the order reconciler
// projects orders: a seeding full fetch, feed events in between, and a
// periodic silent resync to heal dropped events. Alerts go through the same
// deduplicator as order notifications.
type callBoard struct {
	store  callLister
	events <-chan feed.Event
	dedup  *notify.Deduplicator
	resync time.Duration
	mylog  logger.Logger

	mu      sync.Mutex
	pending map[string]models.WaiterCall
}

func newCallBoard(store callLister, events <-chan feed.Event, dedup *notify.Deduplicator, resync time.Duration, mylog logger.Logger) *callBoard {
	if resync <= 0 {
		resync = 30 * time.Second
	}
	return &callBoard{
		store:   store,
		events:  events,
		dedup:   dedup,
		resync:  resync,
		mylog:   mylog,
		pending: make(map[string]models.WaiterCall),
	}
}

func (b *callBoard) run(ctx context.Context) error {
	calls, err := b.fetch(ctx)
	if err != nil {
		b.mylog.Action("call_board_seed_failed").Error("Initial fetch failed", err)
		return fmt.Errorf("seed call board: %w", err)
	}
	b.mu.Lock()
	for _, c := range calls {
		b.pending[c.ID] = c
		// Pre-existing calls were alerted before this surface started.
		b.dedup.Fire(notify.CallKey(c.ID, c.Status))
	}
	b.mu.Unlock()

	ticker := time.NewTicker(b.resync)
	defer ticker.Stop()

	events := b.events
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.handle(ev)
		case <-ticker.C:
			b.refetch(ctx)
		}
	}
}

func (b *callBoard) handle(ev feed.Event) {
	if ev.Table != feed.TableWaiterCalls {
		return
	}
	call, err := feed.DecodeCall(ev.After)
	if err != nil || call == nil {
		return
	}

	b.mu.Lock()
	if call.Status == models.CallPending {
		b.pending[call.ID] = *call
	} else {
		delete(b.pending, call.ID)
	}
	b.mu.Unlock()

	if call.Status == models.CallPending {
		b.alert(*call)
	}
}

// refetch overwrites the board server-wins; calls first seen here still
// alert, replays stay silent.
func (b *callBoard) refetch(ctx context.Context) {
	calls, err := b.fetch(ctx)
	if err != nil {
		b.mylog.Action("call_board_resync").Warn("Resync fetch failed, serving last-known calls", "reason", err.Error())
		return
	}

	b.mu.Lock()
	b.pending = make(map[string]models.WaiterCall, len(calls))
	for _, c := range calls {
		b.pending[c.ID] = c
	}
	b.mu.Unlock()

	for _, c := range calls {
		b.alert(c)
	}
}

func (b *callBoard) fetch(ctx context.Context) ([]models.WaiterCall, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()
	return b.store.ListPending(fetchCtx)
}

func (b *callBoard) alert(call models.WaiterCall) {
	if b.dedup.Fire(notify.CallKey(call.ID, call.Status)) {
		b.mylog.Action("alert").Info("Table is calling a waiter", "table", call.TableNumber, "call_id", call.ID)
	}
}

func (b *callBoard) snapshot() []models.WaiterCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.WaiterCall, 0, len(b.pending))
	for _, c := range b.pending {
		out = append(out, c)
	}
	return out
}

// reservationLister is the read side the reservation board seeds and
// resyncs from.
type reservationLister interface {
	ListBooked(ctx context.Context) ([]models.Reservation, error)
}

// reservationBoard projects booked reservations: seeded on start, fed by the
// reservations feed, healed by periodic resync.
type reservationBoard struct {
	store  reservationLister
	events <-chan feed.Event
	dedup  *notify.Deduplicator
	resync time.Duration
	mylog  logger.Logger

	mu     sync.Mutex
	booked map[string]models.Reservation
}

func newReservationBoard(store reservationLister, events <-chan feed.Event, dedup *notify.Deduplicator, resync time.Duration, mylog logger.Logger) *reservationBoard {
	if resync <= 0 {
		resync = 30 * time.Second
	}
	return &reservationBoard{
		store:  store,
		events: events,
		dedup:  dedup,
		resync: resync,
		mylog:  mylog,
		booked: make(map[string]models.Reservation),
	}
}

func (b *reservationBoard) run(ctx context.Context) error {
	booked, err := b.fetch(ctx)
	if err != nil {
		b.mylog.Action("reservation_board_seed_failed").Error("Initial fetch failed", err)
		return fmt.Errorf("seed reservation board: %w", err)
	}
	b.mu.Lock()
	for _, res := range booked {
		b.booked[res.ID] = res
		// Pre-existing bookings were alerted before this surface started.
		b.dedup.Fire(notify.ReservationKey(res.ID, res.Status))
	}
	b.mu.Unlock()

	ticker := time.NewTicker(b.resync)
	defer ticker.Stop()

	events := b.events
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.handle(ev)
		case <-ticker.C:
			b.refetch(ctx)
		}
	}
}

func (b *reservationBoard) handle(ev feed.Event) {
	if ev.Table != feed.TableReservations {
		return
	}
	res, err := feed.DecodeReservation(ev.After)
	if err != nil || res == nil {
		return
	}

	b.mu.Lock()
	if res.Status == models.ReservationBooked {
		b.booked[res.ID] = *res
	} else {
		delete(b.booked, res.ID)
	}
	b.mu.Unlock()

	if res.Status == models.ReservationBooked {
		b.alert(*res)
	}
}

func (b *reservationBoard) refetch(ctx context.Context) {
	booked, err := b.fetch(ctx)
	if err != nil {
		b.mylog.Action("reservation_board_resync").Warn("Resync fetch failed, serving last-known bookings", "reason", err.Error())
		return
	}

	b.mu.Lock()
	b.booked = make(map[string]models.Reservation, len(booked))
	for _, res := range booked {
		b.booked[res.ID] = res
	}
	b.mu.Unlock()

	for _, res := range booked {
		b.alert(res)
	}
}

func (b *reservationBoard) fetch(ctx context.Context) ([]models.Reservation, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()
	return b.store.ListBooked(fetchCtx)
}

func (b *reservationBoard) alert(res models.Reservation) {
	if b.dedup.Fire(notify.ReservationKey(res.ID, res.Status)) {
		b.mylog.Action("alert").Info("Table reserved",
			"table", res.TableNumber, "customer", res.CustomerName, "reserved_for", res.ReservedFor)
	}
}

func (b *reservationBoard) snapshot() []models.Reservation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Reservation, 0, len(b.booked))
	for _, res := range b.booked {
		out = append(out, res)
	}
	return out
}

type dashboardTerminal struct {
	orders       *service.OrderService
	calls        *service.CallService
	reservations *service.ReservationService
	archiver     *archive.Archiver
	rec          *reconcile.Reconciler
	board        *callBoard
	resBoard     *reservationBoard
}

// readLoop drives the dashboard from stdin:
//
//	orders               print the active projection
//	calls                print pending waiter calls
//	reservations         print booked reservations
//	paid <order> <how>   settle an order's debt
//	drinks <order>       mark an order's drinks served
//	attend <call>        resolve a waiter call
//	seat <reservation>   mark a reservation as arrived
//	liberate <table>     archive every active order on the table
func (d *dashboardTerminal) readLoop(ctx context.Context) error {
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
			for _, o := range d.rec.Snapshot() {
				paid := " "
				if o.IsPaid {
					paid = "$"
				}
				fmt.Printf("table %d  %s  [%s]%s\n", o.TableNumber, o.ID, o.Status, paid)
			}
		case "calls":
			for _, c := range d.board.snapshot() {
				fmt.Printf("table %d is calling (call %s)\n", c.TableNumber, c.ID)
			}
		case "paid":
			if len(fields) != 3 {
				fmt.Println("usage: paid <order-id> <cash|card|online|credit>")
				continue
			}
			d.settle(ctx, fields[1], models.PaymentMethod(fields[2]))
		case "drinks":
			if len(fields) != 2 {
				fmt.Println("usage: drinks <order-id>")
				continue
			}
			d.drinks(ctx, fields[1])
		case "reservations":
			for _, res := range d.resBoard.snapshot() {
				fmt.Printf("table %d  %s  party=%d  at %s\n",
					res.TableNumber, res.CustomerName, res.PartySize, res.ReservedFor.Format("15:04"))
			}
		case "attend":
			if len(fields) != 2 {
				fmt.Println("usage: attend <call-id>")
				continue
			}
			if _, err := d.calls.Attend(ctx, fields[1]); err != nil {
				fmt.Printf("attend failed: %v\n", err)
			}
		case "seat":
			if len(fields) != 2 {
				fmt.Println("usage: seat <reservation-id>")
				continue
			}
			if _, err := d.reservations.Seat(ctx, fields[1]); err != nil {
				fmt.Printf("seat failed: %v\n", err)
			}
		case "liberate":
			if len(fields) != 2 {
				fmt.Println("usage: liberate <table-number>")
				continue
			}
			table, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("table number must be an integer")
				continue
			}
			if err := d.archiver.LiberateTable(ctx, table); err != nil {
				fmt.Printf("liberate failed: %v\n", err)
			}
		default:
			fmt.Println("commands: orders | calls | reservations | paid | drinks | attend | seat | liberate")
		}
	}
	return scanner.Err()
}

func (d *dashboardTerminal) settle(ctx context.Context, orderID string, method models.PaymentMethod) {
	err := d.rec.Mutate(ctx,
		func(orders []models.Order) []models.Order {
			out := append([]models.Order{}, orders...)
			for i := range out {
				if out[i].ID == orderID {
					out[i].IsPaid = true
					out[i].PaymentMethod = method
				}
			}
			return out
		},
		func(ctx context.Context) error {
			_, err := d.orders.SettleDebt(ctx, orderID, method)
			return err
		},
	)
	if err != nil {
		fmt.Printf("payment failed, projection refreshed: %v\n", err)
	}
}

func (d *dashboardTerminal) drinks(ctx context.Context, orderID string) {
	err := d.rec.Mutate(ctx,
		func(orders []models.Order) []models.Order {
			out := append([]models.Order{}, orders...)
			for i := range out {
				if out[i].ID == orderID {
					out[i].DrinksServed = true
				}
			}
			return out
		},
		func(ctx context.Context) error {
			_, err := d.orders.MarkDrinksServed(ctx, orderID)
			return err
		},
	)
	if err != nil {
		fmt.Printf("drinks update failed, projection refreshed: %v\n", err)
	}
}
