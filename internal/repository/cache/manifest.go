package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Entry is one manifest row describing a stored artifact.
type Entry struct {
	Key       string
	Source    string
	Symbol    string
	Interval  string
	Format    string
	BarCount  int64
	FirstTS   time.Time
	LastTS    time.Time
	FetchedAt time.Time
}

// Manifest tracks artifact metadata in sqlite. It is advisory only: the
// artifacts on disk remain the source of truth for series data.
type Manifest struct {
	db *sql.DB
}

func NewManifest(db *sql.DB) *Manifest {
	return &Manifest{db: db}
}

// Record upserts the entry for e.Key.
func (m *Manifest) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT OR REPLACE INTO cache_entries
			(key, source, symbol, interval, format, bar_count, first_ts, last_ts, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := m.db.ExecContext(ctx, query,
		e.Key, e.Source, e.Symbol, e.Interval, e.Format, e.BarCount,
		unixMilli(e.FirstTS), unixMilli(e.LastTS), unixMilli(e.FetchedAt))
	return err
}

// FetchedAt returns when the artifact for key was last written. The
// second result is false when the key has no entry.
func (m *Manifest) FetchedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := m.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM cache_entries WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// StaleSince returns every entry fetched at or before cutoff.
func (m *Manifest) StaleSince(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT key, source, symbol, interval, format, bar_count, first_ts, last_ts, fetched_at
		FROM cache_entries
		WHERE fetched_at <= ?
		ORDER BY fetched_at`, unixMilli(cutoff))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var first, last, fetched int64
		if err := rows.Scan(&e.Key, &e.Source, &e.Symbol, &e.Interval, &e.Format,
			&e.BarCount, &first, &last, &fetched); err != nil {
			return nil, err
		}
		e.FirstTS = fromUnixMilli(first)
		e.LastTS = fromUnixMilli(last)
		e.FetchedAt = fromUnixMilli(fetched)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (m *Manifest) Delete(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

// Zero times are stored as 0 so that empty series keep NOT NULL columns.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
