package eventsrc

import (
	"github.com/google/uuid"
)

// eventBuilder holds the state common to every builder kind. Builders are values:
// each setter returns a modified copy, and ids and timestamps are only assigned by build.
type eventBuilder[D EventData] struct {
	payload   D
	sessionID uuid.NullUUID
}

func (b eventBuilder[D]) build(entityID uuid.UUID) Event[D] {
	payload := b.payload
	return Event[D]{
		ID:         uuid.New(),
		EventType:  payload.EventType(),
		EntityType: payload.EntityType(),
		EntityID:   entityID,
		SessionID:  b.sessionID,
		Data:       &payload,
		CreatedAt:  now(),
	}
}

// CreateEventBuilder builds events that create a new entity.
type CreateEventBuilder[D EventData] struct {
	eventBuilder[D]
	entityID uuid.NullUUID
}

// NewCreateEventBuilder starts a creation event for the given payload.
func NewCreateEventBuilder[D EventData](payload D) CreateEventBuilder[D] {
	return CreateEventBuilder[D]{eventBuilder: eventBuilder[D]{payload: payload}}
}

// SessionID sets the session that caused the event.
func (b CreateEventBuilder[D]) SessionID(id uuid.UUID) CreateEventBuilder[D] {
	b.sessionID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// EntityID overrides the id of the entity to create. A fresh id is generated otherwise.
func (b CreateEventBuilder[D]) EntityID(id uuid.UUID) CreateEventBuilder[D] {
	b.entityID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// Build creates the event.
func (b CreateEventBuilder[D]) Build() Event[D] {
	if b.entityID.Valid {
		return b.build(b.entityID.UUID)
	}
	return b.build(uuid.New())
}

// UpdateEventBuilder builds events that update an existing entity.
type UpdateEventBuilder[D EventData] struct {
	eventBuilder[D]
}

// NewUpdateEventBuilder starts an update event for the given payload.
func NewUpdateEventBuilder[D EventData](payload D) UpdateEventBuilder[D] {
	return UpdateEventBuilder[D]{eventBuilder: eventBuilder[D]{payload: payload}}
}

// SessionID sets the session that caused the event.
func (b UpdateEventBuilder[D]) SessionID(id uuid.UUID) UpdateEventBuilder[D] {
	b.sessionID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// Build creates the event, bound to the given entity.
func (b UpdateEventBuilder[D]) Build(entity Entity) Event[D] {
	return b.build(entity.EntityID())
}

// BuildWithEntityID creates the event for an entity that is only known by id.
func (b UpdateEventBuilder[D]) BuildWithEntityID(id uuid.UUID) Event[D] {
	return b.build(id)
}

// DeleteEventBuilder builds events that delete an entity.
type DeleteEventBuilder[D EventData] struct {
	eventBuilder[D]
}

// NewDeleteEventBuilder starts a deletion event for the given payload.
func NewDeleteEventBuilder[D EventData](payload D) DeleteEventBuilder[D] {
	return DeleteEventBuilder[D]{eventBuilder: eventBuilder[D]{payload: payload}}
}

// SessionID sets the session that caused the event.
func (b DeleteEventBuilder[D]) SessionID(id uuid.UUID) DeleteEventBuilder[D] {
	b.sessionID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// Build creates the event, bound to the given entity.
func (b DeleteEventBuilder[D]) Build(entity Entity) Event[D] {
	return b.build(entity.EntityID())
}

// BuildWithEntityID creates the event for an entity that is only known by id.
func (b DeleteEventBuilder[D]) BuildWithEntityID(id uuid.UUID) Event[D] {
	return b.build(id)
}

// PurgeEventBuilder builds events that purge an entity and scrub the payloads of its history.
// The payload only selects the event and entity types; it is never stored.
type PurgeEventBuilder[D EventData] struct {
	eventBuilder[D]
}

// NewPurgeEventBuilder starts a purge event for the given payload.
func NewPurgeEventBuilder[D EventData](payload D) PurgeEventBuilder[D] {
	return PurgeEventBuilder[D]{eventBuilder: eventBuilder[D]{payload: payload}}
}

// SessionID sets the session that caused the purge. It becomes the purger id of the event.
func (b PurgeEventBuilder[D]) SessionID(id uuid.UUID) PurgeEventBuilder[D] {
	b.sessionID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// Build creates the purge event, bound to the given entity.
func (b PurgeEventBuilder[D]) Build(entity Entity) Event[D] {
	return b.BuildWithEntityID(entity.EntityID())
}

// BuildWithEntityID creates the purge event for an entity that is only known by id.
func (b PurgeEventBuilder[D]) BuildWithEntityID(id uuid.UUID) Event[D] {
	event := b.build(id)
	purgedAt := event.CreatedAt
	event.Data = nil
	event.PurgedAt = &purgedAt
	event.PurgerID = b.sessionID
	return event
}

// ActionEventBuilder builds events whose enum payload decides between creating,
// updating or deleting an entity.
type ActionEventBuilder[E EnumEventData] struct {
	eventBuilder[E]
}

// NewActionEventBuilder starts an action event for the given enum payload.
func NewActionEventBuilder[E EnumEventData](payload E) ActionEventBuilder[E] {
	return ActionEventBuilder[E]{eventBuilder: eventBuilder[E]{payload: payload}}
}

// SessionID sets the session that caused the event.
func (b ActionEventBuilder[E]) SessionID(id uuid.UUID) ActionEventBuilder[E] {
	b.sessionID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// Build creates the event. The entity id is taken from entity when it is not nil,
// otherwise a fresh id is generated.
func (b ActionEventBuilder[E]) Build(entity Entity) Event[E] {
	if entity == nil {
		return b.build(uuid.New())
	}
	return b.build(entity.EntityID())
}

// ConflictEventBuilder builds events recording that a payload conflicted with an applied event.
type ConflictEventBuilder[EDA, EDC EventData] struct {
	eventBuilder[ConflictData[EDA, EDC]]
}

// NewConflictEventBuilder starts a conflict event for the given conflict payload.
func NewConflictEventBuilder[EDA, EDC EventData](payload ConflictData[EDA, EDC]) ConflictEventBuilder[EDA, EDC] {
	return ConflictEventBuilder[EDA, EDC]{eventBuilder: eventBuilder[ConflictData[EDA, EDC]]{payload: payload}}
}

// SessionID sets the session that caused the event.
func (b ConflictEventBuilder[EDA, EDC]) SessionID(id uuid.UUID) ConflictEventBuilder[EDA, EDC] {
	b.sessionID = uuid.NullUUID{UUID: id, Valid: true}
	return b
}

// Build creates the event, bound to the given entity.
func (b ConflictEventBuilder[EDA, EDC]) Build(entity Entity) Event[ConflictData[EDA, EDC]] {
	return b.build(entity.EntityID())
}

// BuildFromApplied creates the event for the entity the applied event belongs to.
func (b ConflictEventBuilder[EDA, EDC]) BuildFromApplied() Event[ConflictData[EDA, EDC]] {
	return b.build(b.payload.AppliedEvent.EntityID)
}
