package models

import "time"

// EventType names what happened in the check loop.
type EventType string

const (
	EventCheck        EventType = "check"
	EventNotification EventType = "notification"
	EventSession      EventType = "session"
	EventStopped      EventType = "stopped"
)

// Event is published to live feed subscribers.
type Event struct {
	Type    EventType     `json:"type"`
	At      time.Time     `json:"at"`
	CheckID string        `json:"checkId,omitempty"`
	Outcome string        `json:"outcome,omitempty"`
	Results []CheckResult `json:"results,omitempty"`
	Message string        `json:"message,omitempty"`
	Sent    bool          `json:"sent,omitempty"`
	Error   string        `json:"error,omitempty"`
}
