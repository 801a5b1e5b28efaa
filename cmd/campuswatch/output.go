package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func yesNo(b bool) string {
	if b {
		return goodStyle.Render("yes")
	}
	return "no"
}

func percent(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64) + "%"
}

// printCheck renders one check event.
func printCheck(w io.Writer, ev models.Event, loc *time.Location) {
	id := ev.CheckID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Check %s at %s: %s", id, ev.At.In(loc).Format(time.DateTime), ev.Outcome)))

	if ev.Error != "" {
		fmt.Fprintln(w, badStyle.Render("Error: "+ev.Error))
	}
	if len(ev.Results) == 0 {
		return
	}

	t := newTable("Category", "Availability", "Button", "Available")
	for _, r := range ev.Results {
		t.Row(r.Category.DisplayName(), r.AvailabilityText, r.ButtonText, yesNo(r.Available))
	}
	fmt.Fprintln(w, t.Render())
}

// statsSource is the part of the store the stats command reads.
type statsSource interface {
	Totals(ctx context.Context) (models.Totals, error)
	ByCategory(ctx context.Context) ([]models.CategoryTotals, error)
	RecentDays(ctx context.Context, n int) ([]models.DailyStats, error)
	LatestAvailability(ctx context.Context, limit int) ([]models.AvailabilityRecord, error)
	LastCheckTime(ctx context.Context) (time.Time, error)
}

type statsReport struct {
	Totals     models.Totals
	ByCategory []models.CategoryTotals
	Recent     []models.DailyStats
	Latest     []models.AvailabilityRecord
	LastCheck  time.Time
}

func collectStats(ctx context.Context, s statsSource) (statsReport, error) {
	var r statsReport
	var err error

	if r.Totals, err = s.Totals(ctx); err != nil {
		return r, err
	}
	if r.ByCategory, err = s.ByCategory(ctx); err != nil {
		return r, err
	}
	if r.Recent, err = s.RecentDays(ctx, 5); err != nil {
		return r, err
	}
	if r.Latest, err = s.LatestAvailability(ctx, len(models.Categories)); err != nil {
		return r, err
	}
	r.LastCheck, err = s.LastCheckTime(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return r, err
	}
	return r, nil
}

func printStats(w io.Writer, r statsReport, loc *time.Location) {
	fmt.Fprintln(w, titleStyle.Render("Apartment Monitor Statistics"))
	last := "never"
	if !r.LastCheck.IsZero() {
		last = r.LastCheck.In(loc).Format(time.DateTime)
	}
	fmt.Fprintf(w, "%-22s%d\n", "Days monitored:", r.Totals.DaysMonitored)
	fmt.Fprintf(w, "%-22s%d\n", "Total checks:", r.Totals.Checks)
	fmt.Fprintf(w, "%-22s%d (%s)\n", "Total availabilities:", r.Totals.Available, percent(r.Totals.Rate()))
	fmt.Fprintf(w, "%-22s%s\n", "Last check:", last)

	if len(r.ByCategory) > 0 {
		t := newTable("Category", "Checks", "Available", "Rate")
		for _, c := range r.ByCategory {
			t.Row(c.Category.DisplayName(), strconv.Itoa(c.Checks), strconv.Itoa(c.Available), percent(c.Rate()))
		}
		fmt.Fprintln(w, t.Render())
	}

	if len(r.Recent) > 0 {
		t := newTable("Date", "Checks", "Found", "Errors")
		for _, d := range r.Recent {
			t.Row(d.Date, strconv.Itoa(d.Checks), strconv.Itoa(d.AvailabilitiesFound), strconv.Itoa(d.Errors))
		}
		fmt.Fprintln(w, t.Render())
	}

	if len(r.Latest) > 0 {
		t := newTable("Recorded", "Category", "Availability", "Available")
		for _, rec := range r.Latest {
			t.Row(rec.RecordedAt.In(loc).Format(time.DateTime), rec.Category.DisplayName(), rec.AvailabilityText, yesNo(rec.Available))
		}
		fmt.Fprintln(w, t.Render())
	}
}
