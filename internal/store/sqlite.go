package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// SQLite is the file-backed Store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writes arrive concurrently from the work queue.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS availability_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL,
		check_id TEXT NOT NULL,
		category TEXT NOT NULL,
		availability_text TEXT NOT NULL,
		button_text TEXT NOT NULL,
		available INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_history_recorded ON availability_history(recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_category ON availability_history(category);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL,
		message TEXT NOT NULL,
		sent INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		date TEXT PRIMARY KEY,
		checks INTEGER NOT NULL DEFAULT 0,
		availabilities_found INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) AppendAvailability(ctx context.Context, r models.AvailabilityRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO availability_history (recorded_at, check_id, category, availability_text, button_text, available)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(r.RecordedAt), r.CheckID, string(r.Category), r.AvailabilityText, r.ButtonText, boolToInt(r.Available))
	if err != nil {
		return fmt.Errorf("failed to insert availability: %w", err)
	}
	return nil
}

func (s *SQLite) AppendNotification(ctx context.Context, r models.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (recorded_at, message, sent) VALUES (?, ?, ?)`,
		formatTime(r.RecordedAt), r.Message, boolToInt(r.Sent))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *SQLite) IncrementDaily(ctx context.Context, date string, checks, found, errs int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_stats (date, checks, availabilities_found, errors)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			checks = daily_stats.checks + excluded.checks,
			availabilities_found = daily_stats.availabilities_found + excluded.availabilities_found,
			errors = daily_stats.errors + excluded.errors`,
		date, checks, found, errs)
	if err != nil {
		return fmt.Errorf("failed to update daily stats: %w", err)
	}
	return nil
}

func (s *SQLite) LatestAvailability(ctx context.Context, limit int) ([]models.AvailabilityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, check_id, category, availability_text, button_text, available
		FROM availability_history
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []models.AvailabilityRecord
	for rows.Next() {
		var (
			r         models.AvailabilityRecord
			ts, cat   string
			available int
		)
		if err := rows.Scan(&ts, &r.CheckID, &cat, &r.AvailabilityText, &r.ButtonText, &available); err != nil {
			return nil, err
		}
		if r.RecordedAt, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		r.Category = models.Category(cat)
		r.Available = available != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Daily(ctx context.Context, date string) (models.DailyStats, error) {
	d := models.DailyStats{Date: date}
	err := s.db.QueryRowContext(ctx,
		`SELECT checks, availabilities_found, errors FROM daily_stats WHERE date = ?`, date).
		Scan(&d.Checks, &d.AvailabilitiesFound, &d.Errors)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, fmt.Errorf("failed to query daily stats: %w", err)
	}
	return d, nil
}

func (s *SQLite) RecentDays(ctx context.Context, n int) ([]models.DailyStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, checks, availabilities_found, errors
		FROM daily_stats
		ORDER BY date DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var out []models.DailyStats
	for rows.Next() {
		var d models.DailyStats
		if err := rows.Scan(&d.Date, &d.Checks, &d.AvailabilitiesFound, &d.Errors); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) Totals(ctx context.Context) (models.Totals, error) {
	var t models.Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM availability_history),
			(SELECT COALESCE(SUM(available), 0) FROM availability_history),
			(SELECT COUNT(*) FROM daily_stats)`).
		Scan(&t.Checks, &t.Available, &t.DaysMonitored)
	if err != nil {
		return t, fmt.Errorf("failed to query totals: %w", err)
	}
	return t, nil
}

func (s *SQLite) ByCategory(ctx context.Context) ([]models.CategoryTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(available), 0)
		FROM availability_history
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	var out []models.CategoryTotals
	for rows.Next() {
		var (
			c   models.CategoryTotals
			cat string
		)
		if err := rows.Scan(&cat, &c.Checks, &c.Available); err != nil {
			return nil, err
		}
		c.Category = models.Category(cat)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByProbeOrder(out)
	return out, nil
}

func (s *SQLite) LastCheckTime(ctx context.Context) (time.Time, error) {
	var ts sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(recorded_at) FROM availability_history`).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to query last check: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, ErrNotFound
	}
	return parseTime(ts.String)
}

func (s *SQLite) Notifications(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, message, sent FROM notifications
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationRecord
	for rows.Next() {
		var (
			r    models.NotificationRecord
			ts   string
			sent int
		)
		if err := rows.Scan(&ts, &r.Message, &sent); err != nil {
			return nil, err
		}
		if r.RecordedAt, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		r.Sent = sent != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
