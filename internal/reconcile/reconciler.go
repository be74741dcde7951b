package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/feed"
	"comanda/internal/notify"
	"comanda/pkg/logger"
)

// Store is the read side the reconciler seeds and resyncs from.
type Store interface {
	ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error)
}

// Notification is one user-facing alert, already deduplicated.
type Notification struct {
	OrderID     string
	TableNumber int
	ItemIndex   int // -1 for order-level transitions
	ItemName    string
	Status      string
}

// Options scope a reconciler to its surface.
type Options struct {
	// Table filters the projection to one table; nil watches every table.
	Table *int
	// Terminal is the status that removes an order from this surface's
	// active projection. Defaults to served.
	Terminal models.OrderStatus
	// ResyncInterval is the silent full-refetch period.
	ResyncInterval time.Duration
}

type command struct {
	local func([]models.Order) []models.Order
	write func(ctx context.Context) error
	reply chan error
}

// Reconciler is a single logical actor: one goroutine owns the projection and
// serializes feed events, periodic resyncs and optimistic writes. Its three
// suspension points are the feed channel, the resync ticker and the backing
// write of a mutation it issued.
type Reconciler struct {
	mylog    logger.Logger
	store    Store
	dedup    *notify.Deduplicator
	events   <-chan feed.Event
	opts     Options
	notifyFn func(Notification)
	cmds     chan command

	mu   sync.RWMutex
	proj Projection
}

func New(store Store, dedup *notify.Deduplicator, events <-chan feed.Event, opts Options, notifyFn func(Notification), mylog logger.Logger) *Reconciler {
	if opts.Terminal == "" {
		opts.Terminal = models.OrderServed
	}
	if opts.ResyncInterval <= 0 {
		opts.ResyncInterval = 30 * time.Second
	}
	if notifyFn == nil {
		notifyFn = func(Notification) {}
	}
	return &Reconciler{
		mylog:    mylog,
		store:    store,
		dedup:    dedup,
		events:   events,
		opts:     opts,
		notifyFn: notifyFn,
		cmds:     make(chan command),
	}
}

// Snapshot returns a copy of the current projection's orders.
func (r *Reconciler) Snapshot() []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Order, len(r.proj.Orders))
	copy(out, r.proj.Orders)
	return out
}

func (r *Reconciler) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.proj.Version
}

// Mutate runs an optimistic write through the actor loop: the local change
// lands in the projection immediately, then the backing write is issued; on
// failure the speculative change is discarded by a forced full resync.
// Returns once the write settles or ctx is done.
func (r *Reconciler) Mutate(ctx context.Context, local func([]models.Order) []models.Order, write func(ctx context.Context) error) error {
	cmd := command{local: local, write: write, reply: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run seeds the projection with a full fetch and then consumes events,
// resync ticks and mutation commands until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	mylog := r.mylog.Action("reconciler_run")

	orders, err := r.fetch(ctx)
	if err != nil {
		mylog.Error("Initial fetch failed", err)
		return fmt.Errorf("seed projection: %w", err)
	}
	r.setProj(Replace(Projection{}, orders))
	r.dedup.Seed(orders)
	mylog.Info("Projection seeded", "orders", len(orders))

	ticker := time.NewTicker(r.opts.ResyncInterval)
	defer ticker.Stop()

	events := r.events
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				// Subscriber shut down; resyncs keep the projection honest.
				events = nil
				continue
			}
			r.handleEvent(ev)

		case <-ticker.C:
			r.resync(ctx)

		case cmd := <-r.cmds:
			r.mu.Lock()
			r.proj = Replace(r.proj, cmd.local(r.proj.Orders))
			r.mu.Unlock()

			err := cmd.write(ctx)
			if err != nil {
				mylog.Action("optimistic_write_failed").Warn("Discarding speculative change", "reason", err.Error())
				r.resync(ctx)
			}
			cmd.reply <- err
		}
	}
}

func (r *Reconciler) handleEvent(ev feed.Event) {
	if ev.Table != feed.TableOrders {
		return
	}
	mylog := r.mylog.Action("merge_event")

	before, err := feed.DecodeOrder(ev.Before)
	if err != nil {
		mylog.Error("Dropping event with bad before row", err)
		return
	}
	after, err := feed.DecodeOrder(ev.After)
	if err != nil {
		mylog.Error("Dropping event with bad after row", err)
		return
	}
	ch := OrderChange{Op: ev.Op, Before: before, After: after}

	if !r.inScope(ch) {
		return
	}

	r.mu.Lock()
	old, known := r.proj.Find(ch.id())
	r.proj = Merge(r.proj, ch, r.opts.Terminal)
	r.mu.Unlock()

	if ch.After != nil {
		var prev *models.Order
		if known {
			prev = &old
		} else if ch.Before != nil {
			prev = ch.Before
		}
		r.fireTransitions(prev, ch.After)
	}
}

// fireTransitions surfaces alerts for every newly observed status change,
// gated on the deduplicator so replays and resyncs stay silent.
func (r *Reconciler) fireTransitions(old, now *models.Order) {
	if old == nil || now.Status != old.Status {
		if r.dedup.Fire(notify.OrderKey(now.ID, now.Status)) {
			r.notifyFn(Notification{
				OrderID:     now.ID,
				TableNumber: now.TableNumber,
				ItemIndex:   -1,
				Status:      string(now.Status),
			})
		}
	}
	for i, item := range now.Items {
		if old != nil && i < len(old.Items) && old.Items[i].Status == item.Status {
			continue
		}
		if item.Status == models.ItemPending {
			continue
		}
		if r.dedup.Fire(notify.ItemKey(now.ID, i, item.Status)) {
			r.notifyFn(Notification{
				OrderID:     now.ID,
				TableNumber: now.TableNumber,
				ItemIndex:   i,
				ItemName:    item.Name,
				Status:      string(item.Status),
			})
		}
	}
}

// resync is the silent safety net: refetch everything in scope and overwrite
// the local projection, server-wins. Transitions first observed here still
// fire (the deduplicator suppresses anything already alerted).
func (r *Reconciler) resync(ctx context.Context) {
	mylog := r.mylog.Action("silent_resync")

	orders, err := r.fetch(ctx)
	if err != nil {
		// Stale projection until the next tick; never fatal.
		mylog.Warn("Resync fetch failed, serving last-known projection", "reason", err.Error())
		return
	}

	r.mu.Lock()
	prev := r.proj
	r.proj = Replace(r.proj, orders)
	r.mu.Unlock()

	for i := range orders {
		now := &orders[i]
		if old, ok := prev.Find(now.ID); ok {
			r.fireTransitions(&old, now)
		} else {
			r.fireTransitions(nil, now)
		}
	}
	mylog.Debug("Projection resynced", "orders", len(orders))
}

func (r *Reconciler) fetch(ctx context.Context) ([]models.Order, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()
	return r.store.ListActive(fetchCtx, r.opts.Table)
}

func (r *Reconciler) inScope(ch OrderChange) bool {
	if r.opts.Table == nil {
		return true
	}
	if ch.After != nil {
		return ch.After.TableNumber == *r.opts.Table
	}
	if ch.Before != nil {
		return ch.Before.TableNumber == *r.opts.Table
	}
	return false
}

func (r *Reconciler) setProj(p Projection) {
	r.mu.Lock()
	r.proj = p
	r.mu.Unlock()
}
