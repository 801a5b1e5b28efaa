package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// DefaultHighWindows is the leasing office's release slot: Wednesday 12:00-15:30.
func DefaultHighWindows() []models.PriorityWindow {
	return []models.PriorityWindow{
		{Weekday: time.Wednesday, StartHour: 12, StartMinute: 0, EndHour: 15, EndMinute: 30},
	}
}

// DefaultMediumWindows covers weekday afternoons around the release slot.
func DefaultMediumWindows() []models.PriorityWindow {
	return []models.PriorityWindow{
		{Weekday: time.Wednesday, StartHour: 15, StartMinute: 30, EndHour: 19, EndMinute: 0},
		{Weekday: time.Tuesday, StartHour: 13, StartMinute: 0, EndHour: 19, EndMinute: 0},
		{Weekday: time.Thursday, StartHour: 13, StartMinute: 0, EndHour: 19, EndMinute: 0},
		{Weekday: time.Friday, StartHour: 13, StartMinute: 0, EndHour: 19, EndMinute: 0},
	}
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWindows parses a comma or semicolon separated list such as
// "wed 12:00-15:30, tue 13:00-19:00". Weekdays use their three-letter names.
func ParseWindows(s string) ([]models.PriorityWindow, error) {
	var out []models.PriorityWindow
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := parseWindow(part)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func parseWindow(s string) (models.PriorityWindow, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return models.PriorityWindow{}, fmt.Errorf("window %q: want \"<day> HH:MM-HH:MM\"", s)
	}
	day, ok := weekdays[strings.ToLower(fields[0])[:min(3, len(fields[0]))]]
	if !ok {
		return models.PriorityWindow{}, fmt.Errorf("window %q: unknown weekday %q", s, fields[0])
	}
	start, end, ok := strings.Cut(fields[1], "-")
	if !ok {
		return models.PriorityWindow{}, fmt.Errorf("window %q: missing '-' between start and end", s)
	}
	sh, sm, err := parseClock(start)
	if err != nil {
		return models.PriorityWindow{}, fmt.Errorf("window %q: %w", s, err)
	}
	eh, em, err := parseClock(end)
	if err != nil {
		return models.PriorityWindow{}, fmt.Errorf("window %q: %w", s, err)
	}
	return models.PriorityWindow{Weekday: day, StartHour: sh, StartMinute: sm, EndHour: eh, EndMinute: em}, nil
}

func parseClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
