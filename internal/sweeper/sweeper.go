// Package sweeper reclaims idle tables: paid orders past their threshold are
// force-served through the same liberate operation a human would use, and
// long-running unpaid tables get an advisory liberation suggestion.
package sweeper

import (
	"context"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/pkg/logger"
)

type Archiver interface {
	LiberateTable(ctx context.Context, tableNumber int) error
}

// Suggestion is the advisory affordance for a stale unpaid table. It never
// mutates state; dismissing it is the surface's business.
type Suggestion struct {
	TableNumber   int
	OldestOrderID string
	Age           time.Duration
}

type Options struct {
	Interval       time.Duration // sweep period
	PaidServeAfter time.Duration // force-serve paid orders after this
	SuggestAfter   time.Duration // suggest liberating unpaid tables after this
}

// Sweeper periodically scans the owning surface's projection. The snapshot
// function, clock and archiver are injected so tests can drive virtual time.
type Sweeper struct {
	opts      Options
	snapshot  func() []models.Order
	archiver  Archiver
	suggestFn func(Suggestion)
	now       func() time.Time
	mylog     logger.Logger

	suggested map[string]struct{}
}

func New(opts Options, snapshot func() []models.Order, archiver Archiver, suggestFn func(Suggestion), mylog logger.Logger) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.PaidServeAfter <= 0 {
		opts.PaidServeAfter = 30 * time.Minute
	}
	if opts.SuggestAfter <= 0 {
		opts.SuggestAfter = 45 * time.Minute
	}
	if suggestFn == nil {
		suggestFn = func(Suggestion) {}
	}
	return &Sweeper{
		opts:      opts,
		snapshot:  snapshot,
		archiver:  archiver,
		suggestFn: suggestFn,
		now:       func() time.Time { return time.Now().UTC() },
		mylog:     mylog,
		suggested: make(map[string]struct{}),
	}
}

// SetNow overrides the clock. Tests only.
func (s *Sweeper) SetNow(now func() time.Time) {
	s.now = now
}

// Run sweeps once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the current projection.
func (s *Sweeper) Sweep(ctx context.Context) {
	mylog := s.mylog.Action("expiry_sweep")
	now := s.now()

	// Oldest unpaid order per table; paid orders never suppress a
	// suggestion for an older unpaid neighbor.
	oldestUnpaid := map[int]models.Order{}
	liberate := map[int]struct{}{}

	for _, o := range s.snapshot() {
		if !o.Active() {
			continue
		}

		if o.IsPaid {
			if o.PaidAt != nil && now.Sub(*o.PaidAt) >= s.opts.PaidServeAfter {
				liberate[o.TableNumber] = struct{}{}
			}
			continue
		}

		if oldest, ok := oldestUnpaid[o.TableNumber]; !ok || o.CreatedAt.Before(oldest.CreatedAt) {
			oldestUnpaid[o.TableNumber] = o
		}
	}

	for table := range liberate {
		sweepCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
		err := s.archiver.LiberateTable(sweepCtx, table)
		cancel()
		if err != nil {
			mylog.Error("Auto-liberation failed", err, "table", table)
			continue
		}
		mylog.Info("Stale paid table auto-served", "table", table)
	}

	for table, oldest := range oldestUnpaid {
		if _, pending := liberate[table]; pending {
			continue
		}
		age := now.Sub(oldest.CreatedAt)
		if age < s.opts.SuggestAfter {
			continue
		}
		// One suggestion per stale order; re-suggesting every tick would spam.
		if _, done := s.suggested[oldest.ID]; done {
			continue
		}
		s.suggested[oldest.ID] = struct{}{}
		s.suggestFn(Suggestion{TableNumber: table, OldestOrderID: oldest.ID, Age: age})
		mylog.Info("Liberation suggested", "table", table, "age_min", int(age.Minutes()))
	}
}
