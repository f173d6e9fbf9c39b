// Package spool keeps a local record of score-result batches whose flush
// failed. The dispatcher discards failed batches from memory rather than
// re-queueing them; the spool exists so an operator can inspect what was
// dropped and resubmit it deliberately.
package spool

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
)

// Entry is one spooled flush failure.
type Entry struct {
	ID            string              `json:"id"`
	Items         []model.ScoreResult `json:"items"`
	Cause         string              `json:"cause"`
	CreatedAt     time.Time           `json:"createdAt"`
	ResubmittedAt *time.Time          `json:"resubmittedAt,omitempty"`
}

// Spool stores flush failures in a local SQLite database.
type Spool struct {
	db *sql.DB
}

// Open opens (or creates) the spool database at the given path and applies
// the schema.
func Open(path string) (*Spool, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "spool: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "spool: exec %s", pragma)
		}
	}
	s := &Spool{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const spoolMigration = `
CREATE TABLE IF NOT EXISTS failed_flushes (
	id             TEXT PRIMARY KEY,
	items          TEXT NOT NULL,
	item_count     INTEGER NOT NULL,
	cause          TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	resubmitted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_failed_flushes_created_at ON failed_flushes(created_at);
`

func (s *Spool) migrate() error {
	_, err := s.db.Exec(spoolMigration)
	return eris.Wrap(err, "spool: migrate")
}

// Close closes the underlying database.
func (s *Spool) Close() error {
	return s.db.Close()
}

// Append records one failed batch with the error that caused it.
func (s *Spool) Append(ctx context.Context, items []model.ScoreResult, cause string) error {
	if len(items) == 0 {
		return nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return eris.Wrap(err, "spool: marshal items")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO failed_flushes (id, items, item_count, cause, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), string(payload), len(items), cause, time.Now().UTC(),
	)
	return eris.Wrap(err, "spool: insert failed flush")
}

// List returns spooled entries, oldest first. When pending is true, entries
// already resubmitted are excluded.
func (s *Spool) List(ctx context.Context, pending bool, limit int) ([]Entry, error) {
	query := `SELECT id, items, cause, created_at, resubmitted_at FROM failed_flushes`
	if pending {
		query += ` WHERE resubmitted_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "spool: list failed flushes")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		var resubmitted sql.NullTime
		if err := rows.Scan(&e.ID, &payload, &e.Cause, &e.CreatedAt, &resubmitted); err != nil {
			return nil, eris.Wrap(err, "spool: scan entry")
		}
		if err := json.Unmarshal([]byte(payload), &e.Items); err != nil {
			return nil, eris.Wrapf(err, "spool: unmarshal items for %s", e.ID)
		}
		if resubmitted.Valid {
			t := resubmitted.Time
			e.ResubmittedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "spool: iterate entries")
}

// MarkResubmitted stamps an entry as resubmitted.
func (s *Spool) MarkResubmitted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE failed_flushes SET resubmitted_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "spool: mark resubmitted %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "spool: rows affected")
	}
	if n == 0 {
		return eris.Errorf("spool: entry %s not found", id)
	}
	return nil
}
