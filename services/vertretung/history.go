package vertretung

import (
	"context"
	"database/sql"
	"fmt"

	"sphnotify/lib/timezone"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS notified_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	message TEXT NOT NULL,
	notifiedat INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notified_events_notifiedat ON notified_events (notifiedat);
`

// History is an auxiliary archive of every dispatched notification. The
// line ledger stays the only dedup authority, this exists for inspection
// after the fact.
type History struct {
	db *sql.DB
}

func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %q: %w", path, err)
	}
	_, err = db.Exec(historySchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &History{db: db}, nil
}

func (h *History) Record(ctx context.Context, fingerprint, message string) error {
	_, err := h.db.ExecContext(
		ctx,
		`INSERT INTO notified_events (fingerprint, message, notifiedat) VALUES (?, ?, ?)`,
		fingerprint, message, timezone.Now().Unix(),
	)
	return err
}

type HistoryEntry struct {
	Fingerprint string
	Message     string
	NotifiedAt  int64
}

func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := h.db.QueryContext(
		ctx,
		`SELECT fingerprint, message, notifiedat FROM notified_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		err := rows.Scan(&e.Fingerprint, &e.Message, &e.NotifiedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *History) Close() error {
	return h.db.Close()
}
