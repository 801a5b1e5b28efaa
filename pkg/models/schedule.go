package models

import (
	"fmt"
	"time"
)

// Tier is a priority class controlling check cadence.
type Tier int

const (
	TierHigh Tier = iota
	TierMedium
	TierNormal
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "HIGH"
	case TierMedium:
		return "MEDIUM"
	default:
		return "NORMAL"
	}
}

// IntervalRange bounds the randomized wait between checks for a tier.
type IntervalRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

func (r IntervalRange) String() string {
	return fmt.Sprintf("%s-%s", r.Min, r.Max)
}

// PriorityWindow is a closed time-of-week range on a single weekday.
// Windows never wrap past midnight.
type PriorityWindow struct {
	Weekday     time.Weekday `json:"weekday"`
	StartHour   int          `json:"startHour"`
	StartMinute int          `json:"startMinute"`
	EndHour     int          `json:"endHour"`
	EndMinute   int          `json:"endMinute"`
}

// Contains reports whether t falls inside the window, comparing (hour, minute)
// pairs lexicographically and inclusive at both ends.
func (w PriorityWindow) Contains(t time.Time) bool {
	if t.Weekday() != w.Weekday {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	return cur >= w.start() && cur <= w.end()
}

// Wraps reports whether the window's end is earlier than its start; such a
// window can never match.
func (w PriorityWindow) Wraps() bool {
	return w.end() < w.start()
}

func (w PriorityWindow) start() int { return w.StartHour*60 + w.StartMinute }
func (w PriorityWindow) end() int   { return w.EndHour*60 + w.EndMinute }

func (w PriorityWindow) String() string {
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d", w.Weekday.String()[:3], w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}
