package store

import (
	"context"
	"time"

	"github.com/shehryarbajwa/campuswatch/internal/work"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Recorder writes history in the background so persistence never stalls the
// check loop. A failed write is logged and counted by the queue only.
type Recorder struct {
	store Store
	queue *work.Queue
}

func NewRecorder(s Store, q *work.Queue) *Recorder {
	return &Recorder{store: s, queue: q}
}

// Results persists one history row per category result of a check.
func (r *Recorder) Results(checkID string, results []models.CheckResult) {
	for _, res := range results {
		rec := models.AvailabilityRecord{
			CheckID:          checkID,
			Category:         res.Category,
			AvailabilityText: res.AvailabilityText,
			ButtonText:       res.ButtonText,
			Available:        res.Available,
			RecordedAt:       res.CheckedAt,
		}
		r.queue.Submit("availability", func(ctx context.Context) error {
			return r.store.AppendAvailability(ctx, rec)
		})
	}
}

// Notification persists one outbound message attempt.
func (r *Recorder) Notification(message string, sent bool, at time.Time) {
	rec := models.NotificationRecord{Message: message, Sent: sent, RecordedAt: at}
	r.queue.Submit("notification", func(ctx context.Context) error {
		return r.store.AppendNotification(ctx, rec)
	})
}

// Check bumps the daily counters for date: one check, plus one found and one
// error as flagged.
func (r *Recorder) Check(date string, found, failed bool) {
	r.queue.Submit("daily", func(ctx context.Context) error {
		return r.store.IncrementDaily(ctx, date, 1, boolToInt(found), boolToInt(failed))
	})
}
