package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Postgres is the Store used when a database URL is configured.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS availability_history (
		id BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		check_id TEXT NOT NULL,
		category TEXT NOT NULL,
		availability_text TEXT NOT NULL,
		button_text TEXT NOT NULL,
		available BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_history_recorded ON availability_history(recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_category ON availability_history(category);

	CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		message TEXT NOT NULL,
		sent BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		date TEXT PRIMARY KEY,
		checks INTEGER NOT NULL DEFAULT 0,
		availabilities_found INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0
	);
	`)
	return err
}

func (p *Postgres) AppendAvailability(ctx context.Context, r models.AvailabilityRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO availability_history (recorded_at, check_id, category, availability_text, button_text, available)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.RecordedAt, r.CheckID, string(r.Category), r.AvailabilityText, r.ButtonText, r.Available)
	if err != nil {
		return fmt.Errorf("failed to insert availability: %w", err)
	}
	return nil
}

func (p *Postgres) AppendNotification(ctx context.Context, r models.NotificationRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO notifications (recorded_at, message, sent) VALUES ($1, $2, $3)`,
		r.RecordedAt, r.Message, r.Sent)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (p *Postgres) IncrementDaily(ctx context.Context, date string, checks, found, errs int) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO daily_stats (date, checks, availabilities_found, errors)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET
			checks = daily_stats.checks + EXCLUDED.checks,
			availabilities_found = daily_stats.availabilities_found + EXCLUDED.availabilities_found,
			errors = daily_stats.errors + EXCLUDED.errors`,
		date, checks, found, errs)
	if err != nil {
		return fmt.Errorf("failed to update daily stats: %w", err)
	}
	return nil
}

func (p *Postgres) LatestAvailability(ctx context.Context, limit int) ([]models.AvailabilityRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT recorded_at, check_id, category, availability_text, button_text, available
		FROM availability_history
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []models.AvailabilityRecord
	for rows.Next() {
		var (
			r   models.AvailabilityRecord
			cat string
		)
		if err := rows.Scan(&r.RecordedAt, &r.CheckID, &cat, &r.AvailabilityText, &r.ButtonText, &r.Available); err != nil {
			return nil, err
		}
		r.Category = models.Category(cat)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Daily(ctx context.Context, date string) (models.DailyStats, error) {
	d := models.DailyStats{Date: date}
	err := p.pool.QueryRow(ctx,
		`SELECT checks, availabilities_found, errors FROM daily_stats WHERE date = $1`, date).
		Scan(&d.Checks, &d.AvailabilitiesFound, &d.Errors)
	if err != nil {
		return d, wrapNotFound(err)
	}
	return d, nil
}

func (p *Postgres) RecentDays(ctx context.Context, n int) ([]models.DailyStats, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT date, checks, availabilities_found, errors
		FROM daily_stats
		ORDER BY date DESC
		LIMIT $1`, n)
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

func (p *Postgres) Totals(ctx context.Context) (models.Totals, error) {
	var t models.Totals
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM availability_history)::int,
			(SELECT COUNT(*) FROM availability_history WHERE available)::int,
			(SELECT COUNT(*) FROM daily_stats)::int`).
		Scan(&t.Checks, &t.Available, &t.DaysMonitored)
	if err != nil {
		return t, fmt.Errorf("failed to query totals: %w", err)
	}
	return t, nil
}

func (p *Postgres) ByCategory(ctx context.Context) ([]models.CategoryTotals, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT category, COUNT(*)::int, COUNT(*) FILTER (WHERE available)::int
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

func (p *Postgres) LastCheckTime(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	if err := p.pool.QueryRow(ctx, `SELECT MAX(recorded_at) FROM availability_history`).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to query last check: %w", err)
	}
	if ts == nil {
		return time.Time{}, ErrNotFound
	}
	return *ts, nil
}

func (p *Postgres) Notifications(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT recorded_at, message, sent FROM notifications
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationRecord
	for rows.Next() {
		var r models.NotificationRecord
		if err := rows.Scan(&r.RecordedAt, &r.Message, &r.Sent); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("db: %w", err)
}
