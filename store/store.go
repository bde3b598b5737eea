// Package store persists tracked items, alert subscriptions and comparison
// results in SQLite. It is the single shared state behind the scheduler and
// the HTTP API; WAL mode plus busy-timeout retries keep concurrent per-item
// writers from tripping over each other.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/ledger"
)

// ErrNotFound is returned for lookups of absent documents.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id               TEXT PRIMARY KEY,
	url              TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	image            TEXT NOT NULL DEFAULT '',
	current_price    REAL NOT NULL DEFAULT 0,
	currency         TEXT NOT NULL DEFAULT 'INR',
	change_amount    REAL NOT NULL DEFAULT 0,
	change_percent   REAL NOT NULL DEFAULT 0,
	change_direction TEXT NOT NULL DEFAULT 'stable',
	updated_at       TEXT NOT NULL,
	history          TEXT NOT NULL DEFAULT '[]',
	trackers         TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id           TEXT PRIMARY KEY,
	product_id   TEXT NOT NULL REFERENCES products(id),
	user_id      TEXT NOT NULL,
	email        TEXT NOT NULL,
	target_price REAL NOT NULL,
	active       INTEGER NOT NULL DEFAULT 1,
	created_at   TEXT NOT NULL,
	triggered_at TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_active_pair
	ON subscriptions (product_id, user_id) WHERE active = 1;

CREATE INDEX IF NOT EXISTS idx_subscriptions_product
	ON subscriptions (product_id);

CREATE TABLE IF NOT EXISTS comparisons (
	item_id      TEXT PRIMARY KEY REFERENCES products(id),
	search_title TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	entries      TEXT NOT NULL DEFAULT '[]'
);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for testing.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	db, err := dbopen.Open(":memory:", dbopen.WithSchema(schema))
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle so sidecars like the run log can share
// the same database file.
func (s *Store) DB() *sql.DB { return s.db }

// PutItem upserts a tracked item.
func (s *Store) PutItem(ctx context.Context, item *ledger.TrackedItem) error {
	history, err := json.Marshal(item.History)
	if err != nil {
		return fmt.Errorf("store: marshal history: %w", err)
	}
	trackers, err := json.Marshal(item.Trackers)
	if err != nil {
		return fmt.Errorf("store: marshal trackers: %w", err)
	}

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products
				(id, url, name, image, current_price, currency,
				 change_amount, change_percent, change_direction,
				 updated_at, history, trackers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				url = excluded.url,
				name = excluded.name,
				image = excluded.image,
				current_price = excluded.current_price,
				currency = excluded.currency,
				change_amount = excluded.change_amount,
				change_percent = excluded.change_percent,
				change_direction = excluded.change_direction,
				updated_at = excluded.updated_at,
				history = excluded.history,
				trackers = excluded.trackers`,
			item.ID, item.URL, item.Name, item.Image, item.CurrentPrice, item.Currency,
			item.Change.Amount, item.Change.Percent, string(item.Change.Direction),
			item.UpdatedAt.UTC().Format(time.RFC3339Nano), string(history), string(trackers))
		if err != nil {
			return fmt.Errorf("store: put item %s: %w", item.ID, err)
		}
		return nil
	})
}

// GetItem returns one tracked item, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id string) (*ledger.TrackedItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, name, image, current_price, currency,
		       change_amount, change_percent, change_direction,
		       updated_at, history, trackers
		FROM products WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// ListItems returns every tracked item.
func (s *Store) ListItems(ctx context.Context) ([]*ledger.TrackedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, name, image, current_price, currency,
		       change_amount, change_percent, change_direction,
		       updated_at, history, trackers
		FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list items: %w", err)
	}
	defer rows.Close()

	var items []*ledger.TrackedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*ledger.TrackedItem, error) {
	var (
		item              ledger.TrackedItem
		direction         string
		updatedAt         string
		history, trackers string
	)
	err := row.Scan(&item.ID, &item.URL, &item.Name, &item.Image,
		&item.CurrentPrice, &item.Currency,
		&item.Change.Amount, &item.Change.Percent, &direction,
		&updatedAt, &history, &trackers)
	if err != nil {
		return nil, err
	}

	item.Change.Direction = ledger.Direction(direction)
	item.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse updated_at for %s: %w", item.ID, err)
	}
	if err := json.Unmarshal([]byte(history), &item.History); err != nil {
		return nil, fmt.Errorf("store: decode history for %s: %w", item.ID, err)
	}
	if err := json.Unmarshal([]byte(trackers), &item.Trackers); err != nil {
		return nil, fmt.Errorf("store: decode trackers for %s: %w", item.ID, err)
	}
	return &item, nil
}

// AddTracker records that a user references an item. Idempotent.
func (s *Store) AddTracker(ctx context.Context, itemID, userID string) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT trackers FROM products WHERE id = ?`, itemID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("store: item %s: %w", itemID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: read trackers: %w", err)
		}

		var trackers []string
		if err := json.Unmarshal([]byte(raw), &trackers); err != nil {
			return fmt.Errorf("store: decode trackers: %w", err)
		}
		for _, t := range trackers {
			if t == userID {
				return nil
			}
		}
		trackers = append(trackers, userID)

		updated, err := json.Marshal(trackers)
		if err != nil {
			return fmt.Errorf("store: marshal trackers: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET trackers = ? WHERE id = ?`, string(updated), itemID); err != nil {
			return fmt.Errorf("store: update trackers: %w", err)
		}
		return nil
	})
}
