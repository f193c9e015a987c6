package eventsrc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by every domain aggregate that events are applied to.
type Entity interface {
	// EntityType returns the plural snake_case name shared by all instances (e.g. "users").
	// It doubles as the table or collection name of the materialized entity.
	EntityType() string
	// EntityID returns the unique identifier of the entity.
	EntityID() uuid.UUID
}

// EventData is the interface that all event payloads must implement.
// Both methods must return constants so they can be called on the zero value.
type EventData interface {
	// EventType returns the PascalCase identifier of the payload (e.g. "UserCreated").
	EventType() string
	// EntityType returns the type of the entity the payload is bound to.
	EntityType() string
}

// EnumEventData is a payload that holds exactly one of several EventData variants.
// EventType must report the tag of the active variant.
type EnumEventData interface {
	EventData
	// Variant returns the concrete payload currently held.
	Variant() EventData
}

// Event is an immutable record of something that happened to an entity.
type Event[D EventData] struct {
	ID         uuid.UUID     `json:"id"`
	EventType  string        `json:"event_type"`
	EntityType string        `json:"entity_type"`
	EntityID   uuid.UUID     `json:"entity_id"`
	SessionID  uuid.NullUUID `json:"session_id"`
	PurgerID   uuid.NullUUID `json:"purger_id"`
	Data       *D            `json:"data"`
	CreatedAt  time.Time     `json:"created_at"`
	PurgedAt   *time.Time    `json:"purged_at"`
}

// IsPurged reports whether the payload of the event has been scrubbed.
func (e Event[D]) IsPurged() bool { return e.Data == nil }

// Payload returns the event payload, or an ErrEmptyEventData error if the event was purged.
func (e Event[D]) Payload() (D, error) {
	if e.Data == nil {
		var zero D
		return zero, fmt.Errorf("%w: %s event %s has no payload", ErrEmptyEventData, e.EventType, e.ID)
	}
	return *e.Data, nil
}

// now returns the timestamp stamped on new events. Postgres keeps microseconds,
// so anything finer would not survive a round trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
