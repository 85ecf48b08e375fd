package availability

import (
	"context"
	"fmt"
	"log"
)

// Projector folds committed events into the read model. Every operation is a
// last-writer-wins upsert or delete keyed by (user_id, available_at), so
// applying the same event twice leaves the read model where the first
// application put it. That makes at-least-once delivery safe.
type Projector struct {
	readModel ReadModel
}

func NewProjector(readModel ReadModel) *Projector {
	return &Projector{readModel: readModel}
}

// Apply dispatches one event to the read model. Unknown event types are
// logged and skipped so a newer writer never wedges an older consumer.
func (p *Projector) Apply(ctx context.Context, ev Event) error {
	switch ev.EventType {
	case EventCreated, EventAppointmentAdded, EventAppointmentRemoved:
		err := p.readModel.Upsert(ctx, Slot{
			UserID:        ev.Payload.UserID,
			AvailableAt:   ev.Payload.AvailableAt,
			AppointmentID: ev.Payload.AppointmentID,
		})
		if err != nil {
			return fmt.Errorf("project %s event %s: %w", ev.EventType, ev.EventID, err)
		}
		return nil

	case EventDeleted:
		if err := p.readModel.Delete(ctx, ev.Payload.UserID, ev.Payload.AvailableAt); err != nil {
			return fmt.Errorf("project Deleted event %s: %w", ev.EventID, err)
		}
		return nil

	default:
		log.Printf("unknown event type %q, skipping event %s", ev.EventType, ev.EventID)
		return nil
	}
}
