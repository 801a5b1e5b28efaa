package store

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shehryarbajwa/campuswatch/internal/work"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func TestIncrementDailyUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Daily(ctx, "2024-05-15"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Daily on empty store = %v, want ErrNotFound", err)
	}

	steps := []struct{ checks, found, errs int }{
		{1, 0, 0},
		{1, 1, 0},
		{1, 0, 1},
	}
	for _, st := range steps {
		if err := s.IncrementDaily(ctx, "2024-05-15", st.checks, st.found, st.errs); err != nil {
			t.Fatalf("IncrementDaily: %v", err)
		}
	}

	d, err := s.Daily(ctx, "2024-05-15")
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	want := models.DailyStats{Date: "2024-05-15", Checks: 3, AvailabilitiesFound: 1, Errors: 1}
	if d != want {
		t.Errorf("Daily = %+v, want %+v", d, want)
	}
}

func TestHistoryQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []models.AvailabilityRecord{
		{CheckID: "c1", Category: models.OnePerson, AvailabilityText: "0", ButtonText: "CONTACT US", RecordedAt: base},
		{CheckID: "c1", Category: models.TwoPerson, AvailabilityText: "0", ButtonText: "CONTACT US", RecordedAt: base},
		{CheckID: "c2", Category: models.OnePerson, AvailabilityText: "1", ButtonText: "Apply", Available: true, RecordedAt: base.Add(time.Minute)},
		{CheckID: "c2", Category: models.TwoPerson, AvailabilityText: "0", ButtonText: "CONTACT US", RecordedAt: base.Add(time.Minute)},
		{CheckID: "c3", Category: models.TwoPerson, AvailabilityText: "2", ButtonText: "Apply", Available: true, RecordedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range rows {
		if err := s.AppendAvailability(ctx, r); err != nil {
			t.Fatalf("AppendAvailability: %v", err)
		}
	}
	for _, date := range []string{"2024-05-13", "2024-05-14", "2024-05-15"} {
		if err := s.IncrementDaily(ctx, date, 1, 0, 0); err != nil {
			t.Fatalf("IncrementDaily: %v", err)
		}
	}

	latest, err := s.LatestAvailability(ctx, 2)
	if err != nil {
		t.Fatalf("LatestAvailability: %v", err)
	}
	if len(latest) != 2 || latest[0].CheckID != "c3" || latest[1].CheckID != "c2" {
		t.Errorf("latest = %+v", latest)
	}
	if !latest[0].RecordedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("recorded at = %s", latest[0].RecordedAt)
	}

	totals, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals != (models.Totals{Checks: 5, Available: 2, DaysMonitored: 3}) {
		t.Errorf("totals = %+v", totals)
	}

	byCat, err := s.ByCategory(ctx)
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	want := []models.CategoryTotals{
		{Category: models.OnePerson, Checks: 2, Available: 1},
		{Category: models.TwoPerson, Checks: 3, Available: 1},
	}
	if len(byCat) != len(want) {
		t.Fatalf("ByCategory = %+v", byCat)
	}
	for i := range want {
		if byCat[i] != want[i] {
			t.Errorf("ByCategory[%d] = %+v, want %+v", i, byCat[i], want[i])
		}
	}

	days, err := s.RecentDays(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDays: %v", err)
	}
	if len(days) != 2 || days[0].Date != "2024-05-15" || days[1].Date != "2024-05-14" {
		t.Errorf("RecentDays = %+v", days)
	}

	last, err := s.LastCheckTime(ctx)
	if err != nil {
		t.Fatalf("LastCheckTime: %v", err)
	}
	if !last.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("LastCheckTime = %s", last)
	}
}

func TestLastCheckTimeEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LastCheckTime(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecorderWritesThroughQueue(t *testing.T) {
	s := newTestStore(t)
	q := work.NewQueue(2, 64, log.New(io.Discard))
	rec := NewRecorder(s, q)

	results := []models.CheckResult{
		models.NewCheckResult(models.OnePerson, "1", "Apply", base),
		models.ErrorResult(models.TwoPerson, base),
	}
	rec.Results("check-1", results)
	rec.Notification("hello", true, base)
	rec.Notification("lost", false, base.Add(time.Second))
	rec.Check("2024-05-15", true, false)
	rec.Check("2024-05-15", false, true)

	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	totals, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Checks != 2 || totals.Available != 1 {
		t.Errorf("totals = %+v", totals)
	}

	d, err := s.Daily(ctx, "2024-05-15")
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if d.Checks != 2 || d.AvailabilitiesFound != 1 || d.Errors != 1 {
		t.Errorf("daily = %+v", d)
	}

	notes, err := s.Notifications(ctx, 10)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(notes) != 2 || notes[0].Message != "lost" || notes[0].Sent || !notes[1].Sent {
		t.Errorf("notifications = %+v", notes)
	}
}
