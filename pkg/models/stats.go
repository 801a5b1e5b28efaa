package models

import "time"

// DateLayout keys the daily counters.
const DateLayout = "2006-01-02"

// AvailabilityRecord is one persisted per-category check result.
type AvailabilityRecord struct {
	CheckID          string    `json:"checkId"`
	Category         Category  `json:"category"`
	AvailabilityText string    `json:"availabilityText"`
	ButtonText       string    `json:"buttonText"`
	Available        bool      `json:"available"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// NotificationRecord is one persisted outbound message attempt.
type NotificationRecord struct {
	Message    string    `json:"message"`
	Sent       bool      `json:"sent"`
	RecordedAt time.Time `json:"recordedAt"`
}

// DailyStats holds the per-date counters.
type DailyStats struct {
	Date                string `json:"date"`
	Checks              int    `json:"checks"`
	AvailabilitiesFound int    `json:"availabilitiesFound"`
	Errors              int    `json:"errors"`
}

// Totals aggregates the whole availability history.
type Totals struct {
	Checks        int `json:"checks"`
	Available     int `json:"available"`
	DaysMonitored int `json:"daysMonitored"`
}

// Rate returns the percentage of history rows that were available.
func (t Totals) Rate() float64 {
	if t.Checks == 0 {
		return 0
	}
	return float64(t.Available) / float64(t.Checks) * 100
}

// CategoryTotals aggregates history rows for a single category.
type CategoryTotals struct {
	Category  Category `json:"category"`
	Checks    int      `json:"checks"`
	Available int      `json:"available"`
}

// Rate returns the percentage of this category's rows that were available.
func (c CategoryTotals) Rate() float64 {
	if c.Checks == 0 {
		return 0
	}
	return float64(c.Available) / float64(c.Checks) * 100
}
