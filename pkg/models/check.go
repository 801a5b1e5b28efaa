package models

import (
	"strings"
	"time"
)

// Category is one of the two apartment types monitored on the floorplans page.
type Category string

const (
	OnePerson Category = "one_person"
	TwoPerson Category = "two_person"
)

// Categories lists every monitored category in probe order.
var Categories = []Category{OnePerson, TwoPerson}

// DisplayName returns the label used in notifications and history rows.
func (c Category) DisplayName() string {
	switch c {
	case OnePerson:
		return "1 Person Apartment"
	case TwoPerson:
		return "2 Person Apartment"
	default:
		return string(c)
	}
}

// ParseCategory accepts either the identifier or the display name.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if s == string(c) || s == c.DisplayName() {
			return c, true
		}
	}
	return "", false
}

const (
	// SentinelContactUs is the button text shown when nothing can be booked.
	SentinelContactUs = "CONTACT US"
	// TextError marks a category whose tab could not be located at all.
	TextError = "Error"
	// TextUnknown marks a text that no read strategy could resolve.
	TextUnknown = "Unknown"
)

// CheckResult is the outcome of probing one category in one check cycle.
type CheckResult struct {
	Category         Category  `json:"category"`
	AvailabilityText string    `json:"availabilityText"`
	ButtonText       string    `json:"buttonText"`
	Available        bool      `json:"available"`
	CheckedAt        time.Time `json:"checkedAt"`
}

// NewCheckResult classifies the raw texts read from a category's detail panel.
func NewCheckResult(c Category, availabilityText, buttonText string, at time.Time) CheckResult {
	return CheckResult{
		Category:         c,
		AvailabilityText: availabilityText,
		ButtonText:       buttonText,
		Available:        ButtonAvailable(buttonText),
		CheckedAt:        at,
	}
}

// ErrorResult is the placeholder recorded when a category's tab lookup fails.
func ErrorResult(c Category, at time.Time) CheckResult {
	return CheckResult{
		Category:         c,
		AvailabilityText: TextError,
		ButtonText:       TextError,
		Available:        false,
		CheckedAt:        at,
	}
}

// ButtonAvailable reports whether a detail-panel button text means units can be applied for.
// Empty text and any casing of "Contact Us" mean unavailable, as do the Error/Unknown placeholders.
func ButtonAvailable(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" || t == TextError || t == TextUnknown {
		return false
	}
	return !strings.EqualFold(t, SentinelContactUs)
}

// AvailableSet returns the categories marked available in results.
func AvailableSet(results []CheckResult) map[Category]bool {
	set := make(map[Category]bool)
	for _, r := range results {
		if r.Available {
			set[r.Category] = true
		}
	}
	return set
}
