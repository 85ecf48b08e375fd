package api

import (
	"time"

	"github.com/hackgods/availability-service/internal/availability"
)

type AvailabilityRequest struct {
	AvailableAt   time.Time `json:"available_at"`
	AppointmentID *string   `json:"appointment_id,omitempty"`
}

type AvailabilityResponse struct {
	Start        time.Time           `json:"start"`
	End          time.Time           `json:"end"`
	Availability []availability.Slot `json:"availability"`
}

type SlotResponse struct {
	UserID        string    `json:"user_id"`
	AvailableAt   time.Time `json:"available_at"`
	AppointmentID *string   `json:"appointment_id"`
}

type AggregateResponse struct {
	UserID       string               `json:"user_id"`
	Version      int64                `json:"version"`
	Availability []availability.Slot  `json:"availability"`
	Events       []availability.Event `json:"events"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
