package eventsrc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ConflictEventType is the event type of every conflict event.
const ConflictEventType = "ConflictData"

// ConflictData pairs an event that is already applied to an entity with a payload
// that could not be applied on top of it.
type ConflictData[EDA, EDC EventData] struct {
	AppliedEvent         Event[EDA] `json:"applied_event"`
	ConflictingEventData EDC        `json:"conflicting_event_data"`
}

// NewConflictData creates the conflict payload for conflicting data rejected by applied.
func NewConflictData[EDA, EDC EventData](applied Event[EDA], conflicting EDC) ConflictData[EDA, EDC] {
	return ConflictData[EDA, EDC]{AppliedEvent: applied, ConflictingEventData: conflicting}
}

func (ConflictData[EDA, EDC]) EventType() string { return ConflictEventType }

// EntityType is the entity type of the applied event.
func (c ConflictData[EDA, EDC]) EntityType() string {
	if c.AppliedEvent.EntityType != "" {
		return c.AppliedEvent.EntityType
	}
	var zero EDA
	if _, ok := any(zero).(EnumEventData); ok {
		return ""
	}
	return zero.EntityType()
}

// conflictRecord is the stored form of ConflictData. Enum payloads are stored as their
// active variant, so the tag of the conflicting payload is kept next to it.
type conflictRecord struct {
	AppliedEvent         DBEvent         `json:"applied_event"`
	ConflictingEventType string          `json:"conflicting_event_type"`
	ConflictingEventData json.RawMessage `json:"conflicting_event_data"`
}

// MarshalJSON stores the applied event as a DBEvent and the conflicting payload with its tag.
func (c ConflictData[EDA, EDC]) MarshalJSON() ([]byte, error) {
	applied, err := ToDBEvent(c.AppliedEvent)
	if err != nil {
		return nil, err
	}

	var payload any = c.ConflictingEventData
	if enum, ok := payload.(EnumEventData); ok {
		if payload = enum.Variant(); payload == nil {
			return nil, fmt.Errorf("%w: conflicting %T holds no variant", ErrEmptyEventData, c.ConflictingEventData)
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(conflictRecord{
		AppliedEvent:         applied,
		ConflictingEventType: payload.(EventData).EventType(),
		ConflictingEventData: data,
	})
}

// UnmarshalJSON decodes conflicts between plain payloads. Conflicts between enum payloads
// need their variant registry and are decoded with DecodeConflict.
func (c *ConflictData[EDA, EDC]) UnmarshalJSON(data []byte) error {
	decoded, err := decodeConflictData(data, FromDBEvent[EDA], plainPayload[EDC])
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// DecodeConflict decodes a stored conflict event whose applied and conflicting payloads
// are both variants of E. Each payload is decoded by its own tag.
func DecodeConflict[E EnumEventData](db DBEvent, variants *VariantRegistry[E]) (Event[ConflictData[E, E]], error) {
	to := eventTypeName[ConflictData[E, E]]()
	if db.EventType != ConflictEventType {
		return Event[ConflictData[E, E]]{}, &ConversionError{
			From: "DBEvent",
			To:   to,
			Err:  fmt.Errorf("event type is %q, expected %q", db.EventType, ConflictEventType),
		}
	}

	out := fromDBEventHeader[ConflictData[E, E]](db)
	if db.IsPurged() {
		return out, nil
	}

	decodeApplied := func(applied DBEvent) (Event[E], error) {
		return EnumFromDBEvent(applied, variants)
	}
	data, err := decodeConflictData(db.Data, decodeApplied, variants.Decode)
	if err != nil {
		return Event[ConflictData[E, E]]{}, &ConversionError{From: "DBEvent", To: to, Err: err}
	}
	out.Data = &data
	return out, nil
}

func decodeConflictData[EDA, EDC EventData](
	data []byte,
	decodeApplied func(DBEvent) (Event[EDA], error),
	decodeConflicting func(eventType string, data json.RawMessage) (EDC, error),
) (ConflictData[EDA, EDC], error) {
	var record conflictRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return ConflictData[EDA, EDC]{}, err
	}

	applied, err := decodeApplied(record.AppliedEvent)
	if err != nil {
		return ConflictData[EDA, EDC]{}, fmt.Errorf("applied event: %w", err)
	}
	conflicting, err := decodeConflicting(record.ConflictingEventType, record.ConflictingEventData)
	if err != nil {
		return ConflictData[EDA, EDC]{}, fmt.Errorf("conflicting payload: %w", err)
	}
	return ConflictData[EDA, EDC]{AppliedEvent: applied, ConflictingEventData: conflicting}, nil
}

func plainPayload[D EventData](eventType string, data json.RawMessage) (D, error) {
	var zero D
	if _, ok := any(zero).(EnumEventData); ok {
		return zero, &ConversionError{
			From: eventType,
			To:   fmt.Sprintf("%T", zero),
			Err:  errors.New("enum payloads must be decoded with DecodeConflict"),
		}
	}
	if want := zero.EventType(); eventType != want {
		return zero, fmt.Errorf("%w: payload type is %q, expected %q", ErrConversion, eventType, want)
	}
	var out D
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// ConflictCheck is implemented by payloads that may conflict with an event already
// applied to the target entity. CheckConflict returns the payload unchanged and a nil
// conflict when it is safe to apply, or the conflict to record instead.
type ConflictCheck[EDA, EDC EventData] interface {
	CheckConflict(applied Event[EDA]) (EDC, *ConflictData[EDA, EDC])
}

// CheckedBuilder is the outcome of a conflict-checked aggregation. Exactly one of
// Applied and Conflict is set.
type CheckedBuilder[T any, EDA, D EventData] struct {
	Applied  *StorageBuilder[T, D]
	Conflict *StorageBuilder[T, ConflictData[EDA, D]]
}

// Conflicted reports whether the payload was routed into the conflict pathway.
func (c CheckedBuilder[T, EDA, D]) Conflicted() bool { return c.Conflict != nil }

// Entity returns the resulting entity of whichever pair is present.
func (c CheckedBuilder[T, EDA, D]) Entity() T {
	if c.Conflict != nil {
		return c.Conflict.Entity
	}
	return c.Applied.Entity
}

// TryUpdateChecked updates entity with the payload of builder unless the payload
// conflicts with applied, the event currently applied to the entity. On conflict the
// entity is only flagged through AggregateConflict; the payload content is not applied.
func TryUpdateChecked[
	T interface {
		Entity
		AggregateUpdate[T, D]
		AggregateConflict[T, EDA, D]
	},
	EDA EventData,
	D interface {
		EventData
		ConflictCheck[EDA, D]
	},
](entity T, applied Event[EDA], builder UpdateEventBuilder[D]) (CheckedBuilder[T, EDA, D], error) {
	checked, conflict := builder.payload.CheckConflict(applied)
	if conflict != nil {
		flagged, err := TryFlagConflict(entity, withSession(NewConflictEventBuilder(*conflict), builder.sessionID))
		if err != nil {
			return CheckedBuilder[T, EDA, D]{}, err
		}
		return CheckedBuilder[T, EDA, D]{Conflict: &flagged}, nil
	}

	builder.payload = checked
	updated, err := TryUpdate(entity, builder)
	if err != nil {
		return CheckedBuilder[T, EDA, D]{}, err
	}
	return CheckedBuilder[T, EDA, D]{Applied: &updated}, nil
}

// TryActionChecked is the action counterpart of TryUpdateChecked. Without an entity
// there is nothing to conflict with, so the action is applied directly.
func TryActionChecked[
	T interface {
		Entity
		AggregateAction[T, E]
		AggregateConflict[T, EDA, E]
	},
	EDA EventData,
	E interface {
		EnumEventData
		ConflictCheck[EDA, E]
	},
](entity *T, applied Event[EDA], builder ActionEventBuilder[E]) (CheckedBuilder[T, EDA, E], error) {
	if entity != nil {
		checked, conflict := builder.payload.CheckConflict(applied)
		if conflict != nil {
			flagged, err := TryFlagConflict(*entity, withSession(NewConflictEventBuilder(*conflict), builder.sessionID))
			if err != nil {
				return CheckedBuilder[T, EDA, E]{}, err
			}
			return CheckedBuilder[T, EDA, E]{Conflict: &flagged}, nil
		}
		builder.payload = checked
	}

	actioned, err := TryAction(builder, entity)
	if err != nil {
		return CheckedBuilder[T, EDA, E]{}, err
	}
	return CheckedBuilder[T, EDA, E]{Applied: &actioned}, nil
}

func withSession[EDA, EDC EventData](b ConflictEventBuilder[EDA, EDC], sessionID uuid.NullUUID) ConflictEventBuilder[EDA, EDC] {
	b.sessionID = sessionID
	return b
}
