package models

import "time"

// SessionStatus represents the current state of a browser session
type SessionStatus string

const (
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusError     SessionStatus = "ERROR"
)

// BrowserSession describes the live automated-browser instance used by the check loop
type BrowserSession struct {
	ID          string        `json:"id"`
	Provider    string        `json:"provider"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	UserAgent   string        `json:"userAgent"`
	Viewport    string        `json:"viewport"`
	ConnectURL  string        `json:"connectUrl,omitempty"`
	ContainerID string        `json:"-"`
	Checks      int           `json:"checks"`
}
