// Package feed carries committed events from the event store to the
// projector over a Redis Stream. Delivery is at-least-once with strict
// per-stream ordering; the projector absorbs redelivery by being idempotent.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/availability-service/internal/availability"
)

// ErrDecode marks a change feed record that cannot be turned back into an
// event. The consumer logs and skips such records, it never stops on them.
var ErrDecode = errors.New("malformed change feed record")

// Envelope is the change record put on the stream: an insert-only row image
// of the event as it was appended, keyed by (user_id, version). It mirrors
// what a storage-level change capture stream would emit, so the consumer
// side decodes field by field instead of trusting the producer's structs.
type Envelope struct {
	EventName string   `json:"event_name"`
	Table     string   `json:"table"`
	Keys      Keys     `json:"keys"`
	NewImage  RowImage `json:"new_image"`
}

type Keys struct {
	UserID  string `json:"user_id"`
	Version int64  `json:"version"`
}

// RowImage is the event row as stored. Timestamps travel as ISO-8601 strings
// and the version as a bare number, matching the persisted wire shape.
type RowImage struct {
	EventID       string       `json:"event_id"`
	UserID        string       `json:"user_id"`
	Created       string       `json:"created"`
	EventType     string       `json:"event_type"`
	EventPayload  ImagePayload `json:"event_payload"`
	CorrelationID string       `json:"correlation_id"`
	Version       json.Number  `json:"version"`
}

type ImagePayload struct {
	UserID        string  `json:"user_id"`
	AvailableAt   string  `json:"available_at"`
	AppointmentID *string `json:"appointment_id"`
}

// NewEnvelope wraps a committed event as an insert record for the stream.
func NewEnvelope(table string, ev availability.Event) Envelope {
	return Envelope{
		EventName: "INSERT",
		Table:     table,
		Keys:      Keys{UserID: ev.UserID, Version: ev.Version},
		NewImage: RowImage{
			EventID:   ev.EventID,
			UserID:    ev.UserID,
			Created:   ev.Created.Format(time.RFC3339Nano),
			EventType: string(ev.EventType),
			EventPayload: ImagePayload{
				UserID:        ev.Payload.UserID,
				AvailableAt:   ev.Payload.AvailableAt.Format(time.RFC3339Nano),
				AppointmentID: ev.Payload.AppointmentID,
			},
			CorrelationID: ev.CorrelationID,
			Version:       json.Number(fmt.Sprintf("%d", ev.Version)),
		},
	}
}

// DecodeEntry extracts the logical event from one stream entry's value map.
// Every failure is reported as ErrDecode with the offending field named.
func DecodeEntry(values map[string]interface{}) (availability.Event, error) {
	raw, ok := values[entryDataField]
	if !ok {
		return availability.Event{}, fmt.Errorf("%w: missing %q field", ErrDecode, entryDataField)
	}

	data, ok := raw.(string)
	if !ok {
		return availability.Event{}, fmt.Errorf("%w: %q field is %T, want string", ErrDecode, entryDataField, raw)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return availability.Event{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img := env.NewImage
	if img.EventID == "" {
		return availability.Event{}, fmt.Errorf("%w: empty event_id", ErrDecode)
	}
	if img.UserID == "" {
		return availability.Event{}, fmt.Errorf("%w: empty user_id", ErrDecode)
	}

	created, err := parseTimestamp(img.Created)
	if err != nil {
		return availability.Event{}, fmt.Errorf("%w: created: %v", ErrDecode, err)
	}
	availableAt, err := parseTimestamp(img.EventPayload.AvailableAt)
	if err != nil {
		return availability.Event{}, fmt.Errorf("%w: event_payload.available_at: %v", ErrDecode, err)
	}

	version, err := img.Version.Int64()
	if err != nil {
		return availability.Event{}, fmt.Errorf("%w: version %q: %v", ErrDecode, img.Version, err)
	}
	if version < 1 {
		return availability.Event{}, fmt.Errorf("%w: version %d out of range", ErrDecode, version)
	}

	return availability.Event{
		EventID:   img.EventID,
		UserID:    img.UserID,
		Created:   created,
		EventType: availability.EventType(img.EventType),
		Payload: availability.Payload{
			UserID:        img.EventPayload.UserID,
			AvailableAt:   availableAt,
			AppointmentID: img.EventPayload.AppointmentID,
		},
		CorrelationID: img.CorrelationID,
		Version:       version,
	}, nil
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds, and
// the zone-less form some producers emit.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
