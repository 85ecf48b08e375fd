package availability

import (
	"time"
)

type EventType string

const (
	EventCreated            EventType = "Created"
	EventDeleted            EventType = "Deleted"
	EventAppointmentAdded   EventType = "AppointmentAdded"
	EventAppointmentRemoved EventType = "AppointmentRemoved"
)

// Payload is the slot image an event describes. Every event carries the
// full image, so consumers never need to merge partial updates.
type Payload struct {
	UserID        string    `json:"user_id"`
	AvailableAt   time.Time `json:"available_at"`
	AppointmentID *string   `json:"appointment_id"`
}

// Event is the envelope persisted in the event store. For a fixed user the
// versions form a gapless ascending sequence starting at 1.
type Event struct {
	EventID       string    `json:"event_id"`
	UserID        string    `json:"user_id"`
	Created       time.Time `json:"created"`
	EventType     EventType `json:"event_type"`
	Payload       Payload   `json:"event_payload"`
	CorrelationID string    `json:"correlation_id"`
	Version       int64     `json:"version"`
}

// Slot is one unit of a user's availability, optionally bound to an
// appointment. At most one slot exists per (user_id, available_at).
type Slot struct {
	UserID        string    `json:"user_id"`
	AvailableAt   time.Time `json:"available_at"`
	AppointmentID *string   `json:"appointment_id"`
}
