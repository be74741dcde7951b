// Package server wires the backend mode: the HTTP API, the services behind
// it, and the expiry sweeper running against the store.
package server

import (
	"context"
	"flag"
	"time"

	"comanda/internal/api/http"
	"comanda/internal/archive"
	"comanda/internal/audit"
	"comanda/internal/config"
	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/service"
	"comanda/internal/stock"
	"comanda/internal/store"
	"comanda/internal/sweeper"
	"comanda/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Execute runs the backend until ctx is cancelled.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config-path", "config.yaml", "path to config yaml")
	port := fs.Int("port", 0, "override the HTTP port from config")
	if err := fs.Parse(args); err != nil {
		return core.ErrParseCmd
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		mylog.Action("config_load_failed").Error("Invalid configuration", err)
		return err
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	db, err := store.Start(ctx, cfg.DB, mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return core.ErrStoreConn
	}
	defer db.Close()
	mylog.Action("db_connected").Info("Successful database connection")

	if err := db.InitSchema(ctx); err != nil {
		mylog.Action("db_schema_failed").Error("Failed to initialize schema", err)
		return err
	}

	pub, err := feed.NewPublisher(cfg.RMQ, mylog)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return core.ErrFeedConn
	}
	defer pub.Close()
	mylog.Action("mb_connected").Info("Successful message broker connection")

	orderRepo := store.NewOrderRepo(db)
	callRepo := store.NewWaiterCallRepo(db)
	chain := audit.NewChain(store.NewAuditRepo(db), mylog)

	orders := service.NewOrderService(orderRepo, db, chain, pub, mylog)
	calls := service.NewCallService(callRepo, pub, mylog)
	reservations := service.NewReservationService(store.NewReservationRepo(db), pub, mylog)
	archiver := archive.NewArchiver(orderRepo, stock.NewClient(cfg.Stock.Address, mylog), chain, pub, mylog)

	// The backend sweeper reads from the store directly instead of a feed
	// projection: it is the authority, not a replica.
	sweep := sweeper.New(sweeper.Options{
		Interval:       cfg.Timers.SweepInterval(),
		PaidServeAfter: cfg.Timers.PaidServeAfter(),
		SuggestAfter:   cfg.Timers.SuggestAfter(),
	}, storeSnapshot(ctx, orderRepo, mylog), archiver, func(sg sweeper.Suggestion) {
		mylog.Action("liberation_suggested").Info("Table has been busy a while, consider liberating",
			"table", sg.TableNumber, "age_min", int(sg.Age.Minutes()))
	}, mylog)

	srv := http.NewServer(cfg.HTTP.Port, http.Deps{
		Orders:       orders,
		Calls:        calls,
		Reservations: reservations,
		Archiver:     archiver,
		Chain:        chain,
	}, mylog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return sweep.Run(gctx) })
	return g.Wait()
}

type activeLister interface {
	ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error)
}

// storeSnapshot adapts the repository to the sweeper's snapshot function.
// Each read is bounded on its own deadline; a failed read yields an empty
// slice so the sweep is just skipped.
func storeSnapshot(ctx context.Context, repo activeLister, mylog logger.Logger) func() []models.Order {
	return func() []models.Order {
		fetchCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
		defer cancel()

		active, err := repo.ListActive(fetchCtx, nil)
		if err != nil {
			mylog.Action("sweep_snapshot_failed").Error("Failed to list active orders for sweep", err)
			return nil
		}
		return active
	}
}
