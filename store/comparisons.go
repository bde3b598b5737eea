package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/match"
)

// GetComparison returns the cached comparison for an item, or nil when none
// has been generated yet. Satisfies match.Cache.
func (s *Store) GetComparison(ctx context.Context, itemID string) (*match.Comparison, error) {
	var (
		cmp         match.Comparison
		generatedAt string
		entries     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id, search_title, generated_at, entries
		FROM comparisons WHERE item_id = ?`, itemID).
		Scan(&cmp.ItemID, &cmp.SearchTitle, &generatedAt, &entries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: comparison for %s: %w", itemID, err)
	}

	cmp.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse generated_at for %s: %w", itemID, err)
	}
	if err := json.Unmarshal([]byte(entries), &cmp.Entries); err != nil {
		return nil, fmt.Errorf("store: decode comparison entries for %s: %w", itemID, err)
	}
	return &cmp, nil
}

// PutComparison replaces the cached comparison wholesale. Satisfies
// match.Cache.
func (s *Store) PutComparison(ctx context.Context, cmp *match.Comparison) error {
	entries, err := json.Marshal(cmp.Entries)
	if err != nil {
		return fmt.Errorf("store: marshal comparison entries: %w", err)
	}

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comparisons (item_id, search_title, generated_at, entries)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(item_id) DO UPDATE SET
				search_title = excluded.search_title,
				generated_at = excluded.generated_at,
				entries = excluded.entries`,
			cmp.ItemID, cmp.SearchTitle,
			cmp.GeneratedAt.UTC().Format(time.RFC3339Nano), string(entries))
		if err != nil {
			return fmt.Errorf("store: put comparison for %s: %w", cmp.ItemID, err)
		}
		return nil
	})
}
