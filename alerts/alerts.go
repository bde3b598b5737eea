// Package alerts decides when subscribers are notified about a price drop
// and transitions triggered subscriptions to their terminal state.
//
// Semantics are one-shot: once a subscription triggers it is deactivated and
// never re-armed by the system. A subscriber who wants another alert creates
// a new subscription.
package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/pricewatch/notify"
)

// Subscription is a subscriber's target-price watch on one item.
type Subscription struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"productId"`
	UserID      string     `json:"userId"`
	Email       string     `json:"email"`
	TargetPrice float64    `json:"targetPrice"`
	Active      bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	TriggeredAt *time.Time `json:"triggeredAt,omitempty"`
}

// Store is the subscription persistence the engine needs.
type Store interface {
	// EligibleSubscriptions returns active subscriptions for the item whose
	// target price is at or above currentPrice.
	EligibleSubscriptions(ctx context.Context, itemID string, currentPrice float64) ([]Subscription, error)
	// MarkTriggered deactivates a subscription and stamps the trigger time.
	MarkTriggered(ctx context.Context, subscriptionID string, at time.Time) error
}

// Notifier dispatches one notification. A non-nil error means delivery could
// not be presumed successful and the subscription must stay armed.
type Notifier interface {
	Send(ctx context.Context, address, subject, htmlBody string) error
}

// Item carries the product fields shown in a notification.
type Item struct {
	ID       string
	Name     string
	Image    string
	URL      string
	Currency string
}

// Engine evaluates subscriptions against fresh prices.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the trigger-time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an alert engine.
func NewEngine(store Store, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate finds all satisfied active subscriptions for the item at
// currentPrice, notifies each subscriber, and deactivates the subscription
// only after a successful dispatch. A failed dispatch leaves the
// subscription armed for the next cycle; one subscription's failure never
// aborts the others.
func (e *Engine) Evaluate(ctx context.Context, item Item, currentPrice float64) []Subscription {
	subs, err := e.store.EligibleSubscriptions(ctx, item.ID, currentPrice)
	if err != nil {
		e.logger.Error("alerts: eligible subscription query failed",
			"item", item.ID, "error", err)
		return nil
	}

	var triggered []Subscription
	for _, sub := range subs {
		if !sub.Active {
			continue
		}

		subject, body, err := notify.RenderAlert(notify.Alert{
			ProductName:  item.Name,
			ProductURL:   item.URL,
			Image:        item.Image,
			Currency:     item.Currency,
			CurrentPrice: currentPrice,
			TargetPrice:  sub.TargetPrice,
		})
		if err != nil {
			e.logger.Error("alerts: render notification failed",
				"subscription", sub.ID, "error", err)
			continue
		}

		if err := e.notifier.Send(ctx, sub.Email, subject, body); err != nil {
			// Leave the subscription active: it retries next cycle.
			e.logger.Error("alerts: notification dispatch failed",
				"subscription", sub.ID, "address", sub.Email, "error", err)
			continue
		}

		at := e.now()
		if err := e.store.MarkTriggered(ctx, sub.ID, at); err != nil {
			e.logger.Error("alerts: mark triggered failed",
				"subscription", sub.ID, "error", err)
			continue
		}

		sub.Active = false
		sub.TriggeredAt = &at
		triggered = append(triggered, sub)

		e.logger.Info("alerts: subscription triggered",
			"subscription", sub.ID, "item", item.ID,
			"price", currentPrice, "target", sub.TargetPrice)
	}

	return triggered
}
