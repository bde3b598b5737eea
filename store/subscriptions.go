package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/dbopen"
)

// CreateSubscription inserts a new alert subscription. Any existing active
// subscription for the same (item, user) pair is deactivated first, so the
// one-active-per-pair invariant holds even when a user re-sets their target.
func (s *Store) CreateSubscription(ctx context.Context, sub *alerts.Subscription) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE subscriptions SET active = 0
			WHERE product_id = ? AND user_id = ? AND active = 1`,
			sub.ItemID, sub.UserID); err != nil {
			return fmt.Errorf("store: deactivate prior subscription: %w", err)
		}

		var triggered any
		if sub.TriggeredAt != nil {
			triggered = sub.TriggeredAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions
				(id, product_id, user_id, email, target_price, active, created_at, triggered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.ID, sub.ItemID, sub.UserID, sub.Email, sub.TargetPrice,
			boolInt(sub.Active), sub.CreatedAt.UTC().Format(time.RFC3339Nano), triggered); err != nil {
			return fmt.Errorf("store: insert subscription %s: %w", sub.ID, err)
		}
		return nil
	})
}

// GetSubscription returns one subscription, or ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, id string) (*alerts.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, user_id, email, target_price, active, created_at, triggered_at
		FROM subscriptions WHERE id = ?`, id)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: subscription %s: %w", id, ErrNotFound)
	}
	return sub, err
}

// EligibleSubscriptions returns the active subscriptions for an item whose
// target price is at or above the current price.
func (s *Store) EligibleSubscriptions(ctx context.Context, itemID string, currentPrice float64) ([]alerts.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, user_id, email, target_price, active, created_at, triggered_at
		FROM subscriptions
		WHERE product_id = ? AND active = 1 AND target_price >= ?
		ORDER BY created_at`, itemID, currentPrice)
	if err != nil {
		return nil, fmt.Errorf("store: eligible subscriptions for %s: %w", itemID, err)
	}
	defer rows.Close()

	var subs []alerts.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ListSubscriptionsByUser returns all of a user's subscriptions, active and
// triggered alike, newest first.
func (s *Store) ListSubscriptionsByUser(ctx context.Context, userID string) ([]alerts.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, user_id, email, target_price, active, created_at, triggered_at
		FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: subscriptions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var subs []alerts.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// MarkTriggered flips a subscription inactive and stamps the trigger time.
func (s *Store) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET active = 0, triggered_at = ?
		WHERE id = ? AND active = 1`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("store: mark triggered %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeactivateSubscription removes an alert without stamping a trigger time.
func (s *Store) DeactivateSubscription(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return fmt.Errorf("store: deactivate subscription %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanSubscription(row scanner) (*alerts.Subscription, error) {
	var (
		sub       alerts.Subscription
		active    int
		createdAt string
		triggered sql.NullString
	)
	err := row.Scan(&sub.ID, &sub.ItemID, &sub.UserID, &sub.Email,
		&sub.TargetPrice, &active, &createdAt, &triggered)
	if err != nil {
		return nil, err
	}

	sub.Active = active == 1
	sub.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse created_at for %s: %w", sub.ID, err)
	}
	if triggered.Valid {
		at, err := time.Parse(time.RFC3339Nano, triggered.String)
		if err != nil {
			return nil, fmt.Errorf("store: parse triggered_at for %s: %w", sub.ID, err)
		}
		sub.TriggeredAt = &at
	}
	return &sub, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
