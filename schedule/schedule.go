// Package schedule drives the periodic monitoring cycle: every interval it
// lists the tracked items and runs extract, ledger update and alert
// evaluation per item, concurrently across items with per-item failure
// isolation. A batch that is still running when the next tick fires is not
// overlapped; the tick is skipped.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/extract"
	"github.com/hazyhaar/pricewatch/ledger"
	"github.com/hazyhaar/pricewatch/runlog"
)

// ItemStore is the persistence surface the runner needs.
type ItemStore interface {
	ListItems(ctx context.Context) ([]*ledger.TrackedItem, error)
	PutItem(ctx context.Context, item *ledger.TrackedItem) error
}

// Extractor produces a fresh reading for a product URL.
type Extractor interface {
	Extract(ctx context.Context, url string) extract.Record
}

// Alerter evaluates subscriptions after a price update.
type Alerter interface {
	Evaluate(ctx context.Context, item alerts.Item, currentPrice float64) []alerts.Subscription
}

// Config tunes the runner.
type Config struct {
	// Interval between batch starts. Default: 30m.
	Interval time.Duration
	// MaxConcurrent bounds the per-item workers within a batch. Default: 4.
	MaxConcurrent int
	// HistoryCap bounds each item's retained price history. Default: 30.
	HistoryCap int
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Minute
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 30
	}
}

// Runner owns the periodic loop.
type Runner struct {
	cfg       Config
	store     ItemStore
	extractor Extractor
	alerter   Alerter
	log       *slog.Logger
	events    *runlog.Logger
	running   atomic.Bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithRunLog enables persistent cycle diagnostics.
func WithRunLog(l *runlog.Logger) Option {
	return func(r *Runner) { r.events = l }
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, store ItemStore, extractor Extractor, alerter Alerter, opts ...Option) *Runner {
	cfg.defaults()
	r := &Runner{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		alerter:   alerter,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run blocks until ctx is cancelled. The first batch starts immediately;
// later batches start on the interval. If a batch is still running when the
// ticker fires, that tick is skipped rather than overlapping read-modify-
// write cycles on the same items.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("schedule: starting", "interval", r.cfg.Interval, "workers", r.cfg.MaxConcurrent)

	r.tryRunBatch(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("schedule: stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			r.tryRunBatch(ctx)
		}
	}
}

func (r *Runner) tryRunBatch(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("schedule: previous batch still running, skipping tick")
		return
	}
	defer r.running.Store(false)
	r.RunBatch(ctx)
}

// RunBatch runs one full monitoring cycle synchronously.
func (r *Runner) RunBatch(ctx context.Context) {
	start := time.Now()

	items, err := r.store.ListItems(ctx)
	if err != nil {
		r.log.Error("schedule: list items failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	r.events.Record(ctx, runlog.Event{
		Type:    runlog.EventBatchStart,
		Detail:  fmt.Sprintf("items=%d", len(items)),
		Success: true,
	})

	sem := make(chan struct{}, r.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(item *ledger.TrackedItem) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("schedule: item update panicked", "item", item.ID, "panic", p)
				}
			}()
			r.updateItem(ctx, item)
		}(item)
	}
	wg.Wait()

	r.log.Info("schedule: batch complete", "items", len(items), "elapsed", time.Since(start))
	r.events.Record(ctx, runlog.Event{
		Type:    runlog.EventBatchComplete,
		Detail:  fmt.Sprintf("items=%d elapsed=%s", len(items), time.Since(start).Round(time.Millisecond)),
		Success: true,
	})
}

// updateItem runs one item's pipeline: extract, fold into the ledger,
// persist, evaluate alerts. Any failure is logged and ends only this item's
// cycle.
func (r *Runner) updateItem(ctx context.Context, prev *ledger.TrackedItem) {
	rec := r.extractor.Extract(ctx, prev.URL)
	if rec.Failed() {
		r.log.Warn("schedule: extraction failed, skipping item",
			"item", prev.ID, "error", rec.Err)
		r.events.Record(ctx, runlog.Event{
			Type: runlog.EventItemFailed, ItemID: prev.ID, Detail: rec.Err.Error(),
		})
		return
	}
	if rec.Price <= 0 {
		r.log.Warn("schedule: no price extracted, skipping item", "item", prev.ID)
		r.events.Record(ctx, runlog.Event{
			Type: runlog.EventItemFailed, ItemID: prev.ID, Detail: "no price extracted",
		})
		return
	}

	next := ledger.ApplyUpdate(prev, prev.ID, ledger.Reading{
		URL:   prev.URL,
		Name:  rec.Name,
		Image: rec.Image,
		Price: rec.Price,
	}, time.Now(), r.cfg.HistoryCap)

	if err := r.store.PutItem(ctx, &next); err != nil {
		r.log.Error("schedule: persist item failed", "item", prev.ID, "error", err)
		return
	}

	r.log.Info("schedule: item updated",
		"item", next.ID,
		"price", next.CurrentPrice,
		"direction", next.Change.Direction)
	r.events.Record(ctx, runlog.Event{
		Type: runlog.EventItemUpdated, ItemID: next.ID,
		Detail:  fmt.Sprintf("price=%.2f direction=%s", next.CurrentPrice, next.Change.Direction),
		Success: true,
	})

	triggered := r.alerter.Evaluate(ctx, alerts.Item{
		ID:       next.ID,
		Name:     next.Name,
		Image:    next.Image,
		URL:      next.URL,
		Currency: next.Currency,
	}, next.CurrentPrice)
	if len(triggered) > 0 {
		r.log.Info("schedule: alerts triggered", "item", next.ID, "count", len(triggered))
		r.events.Record(ctx, runlog.Event{
			Type: runlog.EventAlertSent, ItemID: next.ID,
			Detail:  fmt.Sprintf("count=%d", len(triggered)),
			Success: true,
		})
	}
}
