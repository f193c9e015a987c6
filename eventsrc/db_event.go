package eventsrc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBEvent is the storage representation of an Event with its payload erased to raw JSON.
type DBEvent struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	SequenceNumber *int64          `json:"sequence_number,omitempty" db:"sequence_number"`
	EventType      string          `json:"event_type" db:"event_type"`
	EntityType     string          `json:"entity_type" db:"entity_type"`
	EntityID       uuid.UUID       `json:"entity_id" db:"entity_id"`
	SessionID      uuid.NullUUID   `json:"session_id" db:"session_id"`
	PurgerID       uuid.NullUUID   `json:"purger_id" db:"purger_id"`
	Data           json.RawMessage `json:"data" db:"data"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	PurgedAt       *time.Time      `json:"purged_at" db:"purged_at"`
}

// IsPurged reports whether the stored payload has been scrubbed.
func (e DBEvent) IsPurged() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

// ToDBEvent serializes the payload of an event. Enum payloads are stored as their
// active variant; the variant is recovered from EventType when reading.
func ToDBEvent[D EventData](e Event[D]) (DBEvent, error) {
	out := DBEvent{
		ID:         e.ID,
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		SessionID:  e.SessionID,
		PurgerID:   e.PurgerID,
		CreatedAt:  e.CreatedAt,
		PurgedAt:   e.PurgedAt,
	}
	if e.Data == nil {
		return out, nil
	}

	var payload any = *e.Data
	if enum, ok := payload.(EnumEventData); ok {
		payload = enum.Variant()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return DBEvent{}, &ConversionError{From: eventTypeName[D](), To: "DBEvent", Err: err}
	}
	out.Data = data
	return out, nil
}

// FromDBEvent deserializes a stored event into an Event with payload type D.
// The stored event type must match the event type declared by D.
func FromDBEvent[D EventData](db DBEvent) (Event[D], error) {
	var zero D
	to := eventTypeName[D]()

	if _, ok := any(zero).(EnumEventData); ok {
		return Event[D]{}, &ConversionError{
			From: "DBEvent",
			To:   to,
			Err:  errors.New("enum payloads must be decoded with EnumFromDBEvent"),
		}
	}
	if want := zero.EventType(); db.EventType != want {
		return Event[D]{}, &ConversionError{
			From: "DBEvent",
			To:   to,
			Err:  fmt.Errorf("event type is %q, expected %q", db.EventType, want),
		}
	}

	out := fromDBEventHeader[D](db)
	if db.IsPurged() {
		return out, nil
	}

	data := new(D)
	if err := json.Unmarshal(db.Data, data); err != nil {
		return Event[D]{}, &ConversionError{From: "DBEvent", To: to, Err: err}
	}
	out.Data = data
	return out, nil
}

// EnumFromDBEvent decodes a stored event into an enum payload. The variant is selected
// by matching the stored event type against the registry, never by payload shape.
func EnumFromDBEvent[E EnumEventData](db DBEvent, variants *VariantRegistry[E]) (Event[E], error) {
	out := fromDBEventHeader[E](db)
	if db.IsPurged() {
		return out, nil
	}

	data, err := variants.Decode(db.EventType, db.Data)
	if err != nil {
		return Event[E]{}, &ConversionError{From: "DBEvent", To: eventTypeName[E](), Err: err}
	}
	out.Data = &data
	return out, nil
}

// IntoVariant narrows an enum event into an event carrying the concrete variant V.
// It fails with a ConversionError if the active variant is not a V.
func IntoVariant[V EventData, E EnumEventData](e Event[E]) (Event[V], error) {
	out := Event[V]{
		ID:         e.ID,
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		SessionID:  e.SessionID,
		PurgerID:   e.PurgerID,
		CreatedAt:  e.CreatedAt,
		PurgedAt:   e.PurgedAt,
	}
	if e.Data == nil {
		return out, nil
	}

	variant := (*e.Data).Variant()
	v, ok := variant.(V)
	if !ok {
		return Event[V]{}, &ConversionError{
			From: fmt.Sprintf("Event[%T]", variant),
			To:   eventTypeName[V](),
		}
	}
	out.Data = &v
	return out, nil
}

func fromDBEventHeader[D EventData](db DBEvent) Event[D] {
	return Event[D]{
		ID:         db.ID,
		EventType:  db.EventType,
		EntityType: db.EntityType,
		EntityID:   db.EntityID,
		SessionID:  db.SessionID,
		PurgerID:   db.PurgerID,
		CreatedAt:  db.CreatedAt,
		PurgedAt:   db.PurgedAt,
	}
}

func eventTypeName[D any]() string {
	var zero D
	return fmt.Sprintf("Event[%T]", zero)
}
