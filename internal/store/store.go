// Package store persists check history, notification attempts and daily
// counters. SQLite is the default backend; Postgres is used when a database
// URL is configured.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// ErrNotFound is returned by single-row reads that match nothing.
var ErrNotFound = errors.New("not found")

// Store is the history backend. Implementations are safe for concurrent use.
type Store interface {
	AppendAvailability(ctx context.Context, r models.AvailabilityRecord) error
	AppendNotification(ctx context.Context, r models.NotificationRecord) error
	// IncrementDaily adds to the counters of date, creating the row if needed.
	IncrementDaily(ctx context.Context, date string, checks, found, errors int) error

	// LatestAvailability returns up to limit history rows, newest first.
	LatestAvailability(ctx context.Context, limit int) ([]models.AvailabilityRecord, error)
	Daily(ctx context.Context, date string) (models.DailyStats, error)
	// RecentDays returns up to n daily rows, newest date first.
	RecentDays(ctx context.Context, n int) ([]models.DailyStats, error)
	Totals(ctx context.Context) (models.Totals, error)
	// ByCategory returns per-category totals in probe order.
	ByCategory(ctx context.Context) ([]models.CategoryTotals, error)
	// LastCheckTime is the time of the newest history row.
	LastCheckTime(ctx context.Context) (time.Time, error)
	// Notifications returns up to limit notification rows, newest first.
	Notifications(ctx context.Context, limit int) ([]models.NotificationRecord, error)

	Close() error
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func sortByProbeOrder(totals []models.CategoryTotals) {
	order := make(map[models.Category]int, len(models.Categories))
	for i, c := range models.Categories {
		order[c] = i
	}
	sort.SliceStable(totals, func(i, j int) bool {
		oi, ok := order[totals[i].Category]
		if !ok {
			oi = len(order)
		}
		oj, ok := order[totals[j].Category]
		if !ok {
			oj = len(order)
		}
		return oi < oj
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
