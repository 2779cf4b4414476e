package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the envelope version written by Emit. Consumers may see
// any version from 1 up to this one.
const SchemaVersion = 1

// ActorRef identifies who triggered the event. Gateway and cron driven events
// carry no actor.
type ActorRef struct {
	AccountID uuid.UUID `json:"accountId"`
	Role      string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Validate checks the fields the publisher routes on.
func (e PayloadEnvelope) Validate() error {
	if e.Version < 1 || e.Version > SchemaVersion {
		return fmt.Errorf("unsupported envelope version %d", e.Version)
	}
	if _, err := uuid.Parse(e.EventID); err != nil {
		return fmt.Errorf("envelope event id: %w", err)
	}
	if e.OccurredAt.IsZero() {
		return errors.New("envelope occurredAt is required")
	}
	return nil
}
