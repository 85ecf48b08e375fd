package availability

import "time"

type CreateAvailability struct {
	CorrelationID string
	UserID        string
	AvailableAt   time.Time
	AppointmentID *string
}

type DeleteAvailability struct {
	CorrelationID string
	UserID        string
	AvailableAt   time.Time
}

type AddAppointment struct {
	CorrelationID string
	UserID        string
	AvailableAt   time.Time
	AppointmentID string
}

type RemoveAppointment struct {
	CorrelationID string
	UserID        string
	AvailableAt   time.Time
}
