// Package runlog records monitoring-cycle events in SQLite: batch runs,
// per-item extraction outcomes and triggered alerts. It is diagnostic
// plumbing, so writes are best-effort; a failing runlog never blocks the
// pipeline.
package runlog

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/pricewatch/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_events (
	event_id   TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	item_id    TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	success    INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_events_created
	ON run_events (created_at);
`

// Event types recorded by the scheduler.
const (
	EventBatchStart    = "batch_start"
	EventBatchComplete = "batch_complete"
	EventItemUpdated   = "item_updated"
	EventItemFailed    = "item_failed"
	EventAlertSent     = "alert_sent"
)

// Event is one row in the run log.
type Event struct {
	Type    string
	ItemID  string
	Detail  string
	Success bool
}

// Logger writes run events.
type Logger struct {
	db    *sql.DB
	newID idgen.Generator
	log   *slog.Logger
}

// New creates a Logger on the given database and installs the schema.
func New(db *sql.DB) (*Logger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Logger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.UUIDv7()),
		log:   slog.Default(),
	}, nil
}

// Record writes one event. Errors are logged and swallowed so a failing
// diagnostics store never blocks the monitoring cycle.
func (l *Logger) Record(ctx context.Context, e Event) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO run_events (event_id, event_type, item_id, detail, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.newID(), e.Type, e.ItemID, e.Detail, boolInt(e.Success),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		l.log.Warn("runlog: record failed", "type", e.Type, "error", err)
	}
}

// Recent returns the newest events, up to limit.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_type, item_id, detail, success
		FROM run_events ORDER BY created_at DESC, event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			success int
		)
		if err := rows.Scan(&e.Type, &e.ItemID, &e.Detail, &success); err != nil {
			return nil, err
		}
		e.Success = success == 1
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window.
func (l *Logger) Prune(ctx context.Context, retain time.Duration) error {
	cutoff := time.Now().Add(-retain).UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM run_events WHERE created_at < ?`, cutoff)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
