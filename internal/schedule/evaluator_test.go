package schedule

import (
	"testing"
	"time"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

func defaultBounds() map[models.Tier]models.IntervalRange {
	return map[models.Tier]models.IntervalRange{
		models.TierHigh:   {Min: 45 * time.Second, Max: 75 * time.Second},
		models.TierMedium: {Min: 90 * time.Second, Max: 150 * time.Second},
		models.TierNormal: {Min: 3 * time.Minute, Max: 8 * time.Minute},
	}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultHighWindows(), DefaultMediumWindows(), defaultBounds(), time.UTC).WithSeed(42)
}

// 2024-05-15 is a Wednesday.
func at(day, h, m int) time.Time {
	return time.Date(2024, 5, day, h, m, 0, 0, time.UTC)
}

func TestTierAt(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name string
		now  time.Time
		want models.Tier
	}{
		{"wednesday release slot", at(15, 13, 0), models.TierHigh},
		{"high start boundary", at(15, 12, 0), models.TierHigh},
		{"high end boundary wins over medium start", at(15, 15, 30), models.TierHigh},
		{"wednesday evening", at(15, 15, 31), models.TierMedium},
		{"tuesday afternoon", at(14, 13, 0), models.TierMedium},
		{"friday end boundary", at(17, 19, 0), models.TierMedium},
		{"friday after hours", at(17, 19, 1), models.TierNormal},
		{"wednesday morning", at(15, 11, 59), models.TierNormal},
		{"monday", at(13, 14, 0), models.TierNormal},
		{"sunday", at(19, 14, 0), models.TierNormal},
	}

	for _, tt := range tests {
		if got := e.TierAt(tt.now); got != tt.want {
			t.Errorf("%s: TierAt(%s) = %s, want %s", tt.name, tt.now.Format(time.RFC1123), got, tt.want)
		}
	}
}

func TestComputeIntervalWithinTierBounds(t *testing.T) {
	e := newTestEvaluator()
	cases := []struct {
		now    time.Time
		lo, hi time.Duration
	}{
		{at(15, 13, 0), 45 * time.Second, 75 * time.Second},
		{at(14, 16, 0), 90 * time.Second, 150 * time.Second},
		{at(13, 9, 0), 3 * 60 * time.Second, 8 * 60 * time.Second},
	}

	for _, c := range cases {
		for i := 0; i < 500; i++ {
			got := e.ComputeInterval(c.now)
			if got < c.lo || got > c.hi {
				t.Fatalf("ComputeInterval(%s) = %s, want within [%s, %s]", c.now, got, c.lo, c.hi)
			}
		}
	}
}

func TestComputeIntervalIsJittered(t *testing.T) {
	e := newTestEvaluator()
	seen := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		seen[e.ComputeInterval(at(13, 9, 0))] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected varying intervals, got %d distinct values", len(seen))
	}
}

func TestNextDueTime(t *testing.T) {
	e := newTestEvaluator()
	now := at(15, 13, 0)
	d := e.Next(now)
	if d.Tier != models.TierHigh {
		t.Errorf("tier = %s, want HIGH", d.Tier)
	}
	if !d.At.Equal(now.Add(d.Interval)) {
		t.Errorf("At = %s, want now+%s", d.At, d.Interval)
	}
}

func TestTierAtUsesEvaluatorLocation(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	e := NewEvaluator(DefaultHighWindows(), nil, defaultBounds(), loc)

	// 10:30 UTC is 12:30 local on Wednesday.
	now := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
	if got := e.TierAt(now); got != models.TierHigh {
		t.Errorf("TierAt = %s, want HIGH", got)
	}
}

func TestCrossMidnightWindowNeverEntered(t *testing.T) {
	high := []models.PriorityWindow{{Weekday: time.Saturday, StartHour: 23, EndHour: 1}}
	e := NewEvaluator(high, nil, defaultBounds(), time.UTC)

	for _, now := range []time.Time{at(18, 23, 30), at(19, 0, 30), at(18, 0, 30)} {
		if got := e.TierAt(now); got != models.TierNormal {
			t.Errorf("TierAt(%s) = %s, want NORMAL", now, got)
		}
	}

	errs := e.Validate()
	if len(errs) != 1 {
		t.Fatalf("Validate returned %d errors, want 1: %v", len(errs), errs)
	}
}

func TestValidateBounds(t *testing.T) {
	bounds := defaultBounds()
	bounds[models.TierMedium] = models.IntervalRange{Min: 2 * time.Minute, Max: time.Minute}
	delete(bounds, models.TierNormal)

	e := NewEvaluator(nil, nil, bounds, time.UTC)
	if errs := e.Validate(); len(errs) != 2 {
		t.Errorf("Validate returned %d errors, want 2: %v", len(errs), errs)
	}
}

func TestParseWindows(t *testing.T) {
	ws, err := ParseWindows("wed 12:00-15:30; Tuesday 13:00-19:00")
	if err != nil {
		t.Fatalf("ParseWindows: %v", err)
	}
	want := []models.PriorityWindow{
		{Weekday: time.Wednesday, StartHour: 12, EndHour: 15, EndMinute: 30},
		{Weekday: time.Tuesday, StartHour: 13, EndHour: 19},
	}
	if len(ws) != len(want) {
		t.Fatalf("got %d windows, want %d", len(ws), len(want))
	}
	for i := range want {
		if ws[i] != want[i] {
			t.Errorf("window %d = %+v, want %+v", i, ws[i], want[i])
		}
	}
}

func TestParseWindowsErrors(t *testing.T) {
	for _, in := range []string{
		"wed",
		"xyz 12:00-13:00",
		"wed 12:00",
		"wed 25:00-26:00",
		"wed 12:61-13:00",
		"wed noon-13:00",
	} {
		if _, err := ParseWindows(in); err == nil {
			t.Errorf("ParseWindows(%q) succeeded, want error", in)
		}
	}
}
