package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "campuswatch dev (commit=none") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "check", "notify-test", "stats", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
}

func TestPrintCheck(t *testing.T) {
	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	ev := models.Event{
		Type:    models.EventCheck,
		At:      at,
		CheckID: "0123456789abcdef",
		Outcome: "ok",
		Results: []models.CheckResult{
			models.NewCheckResult(models.OnePerson, "No availability", "Waitlist", at),
			models.NewCheckResult(models.TwoPerson, "1 unit available", "Apply Now", at),
		},
	}

	var out bytes.Buffer
	printCheck(&out, ev, time.UTC)
	got := out.String()

	for _, want := range []string{
		"Check 01234567 at 2025-03-04 09:30:00: ok",
		"1 Person Apartment",
		"2 Person Apartment",
		"Apply Now",
		"1 unit available",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintCheckError(t *testing.T) {
	ev := models.Event{Type: models.EventCheck, CheckID: "abc", Outcome: "error", Error: "navigation timeout"}

	var out bytes.Buffer
	printCheck(&out, ev, time.UTC)

	if !strings.Contains(out.String(), "Error: navigation timeout") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Contains(out.String(), "Category") {
		t.Error("table printed without results")
	}
}

func TestStatsReport(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	records := []models.AvailabilityRecord{
		{CheckID: "a", Category: models.OnePerson, AvailabilityText: "None", ButtonText: "Waitlist", RecordedAt: at},
		{CheckID: "a", Category: models.TwoPerson, AvailabilityText: "1 left", ButtonText: "Apply Now", Available: true, RecordedAt: at},
	}
	for _, r := range records {
		if err := s.AppendAvailability(ctx, r); err != nil {
			t.Fatalf("AppendAvailability: %v", err)
		}
	}
	if err := s.IncrementDaily(ctx, "2025-03-04", 1, 1, 0); err != nil {
		t.Fatalf("IncrementDaily: %v", err)
	}

	report, err := collectStats(ctx, s)
	if err != nil {
		t.Fatalf("collectStats: %v", err)
	}
	if report.Totals.Checks != 2 || report.Totals.Available != 1 {
		t.Errorf("totals = %+v", report.Totals)
	}
	if !report.LastCheck.Equal(at) {
		t.Errorf("last check = %v, want %v", report.LastCheck, at)
	}

	var out bytes.Buffer
	printStats(&out, report, time.UTC)
	got := out.String()
	for _, want := range []string{
		"Total checks:         2",
		"Total availabilities: 1 (50.0%)",
		"Last check:           2025-03-04 09:30:00",
		"2025-03-04",
		"2 Person Apartment",
		"100.0%",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestStatsReportEmpty(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	report, err := collectStats(context.Background(), s)
	if err != nil {
		t.Fatalf("collectStats: %v", err)
	}

	var out bytes.Buffer
	printStats(&out, report, time.UTC)
	if !strings.Contains(out.String(), "Last check:           never") {
		t.Errorf("output = %q", out.String())
	}
}
