package eventsrc

type operation int

const (
	opUnknown operation = iota
	opCreate
	opUpdate
	opConflict
)

// StorageBuilder pairs an entity with the event that produced it, ready to be
// persisted in one transaction.
type StorageBuilder[T any, D EventData] struct {
	Entity T
	Event  Event[D]

	op operation
}

// NewStorageBuilder pairs an entity with an event.
func NewStorageBuilder[T any, D EventData](entity T, event Event[D]) StorageBuilder[T, D] {
	return StorageBuilder[T, D]{Entity: entity, Event: event}
}

// DeleteBuilder pairs an entity with the event that deletes it.
type DeleteBuilder[T any, D EventData] struct {
	Entity T
	Event  Event[D]
}

// PurgeBuilder pairs an entity with the event that purges it and its history.
type PurgeBuilder[T Entity, D EventData] struct {
	Entity T
	Event  Event[D]
}

// TryCreate builds the creation event and aggregates a new entity from it.
func TryCreate[T AggregateCreate[T, D], D EventData](builder CreateEventBuilder[D]) (StorageBuilder[T, D], error) {
	event := builder.Build()

	var zero T
	entity, err := zero.TryAggregateCreate(event)
	if err != nil {
		return StorageBuilder[T, D]{}, err
	}
	return StorageBuilder[T, D]{Entity: entity, Event: event, op: opCreate}, nil
}

// TryUpdate builds the update event for entity and aggregates the new state.
func TryUpdate[T interface {
	Entity
	AggregateUpdate[T, D]
}, D EventData](entity T, builder UpdateEventBuilder[D]) (StorageBuilder[T, D], error) {
	event := builder.Build(entity)

	updated, err := entity.TryAggregateUpdate(event)
	if err != nil {
		return StorageBuilder[T, D]{}, err
	}
	return StorageBuilder[T, D]{Entity: updated, Event: event, op: opUpdate}, nil
}

// TryDelete builds the deletion event for entity. Entities implementing AggregateDelete
// get a chance to adjust their state first.
func TryDelete[T Entity, D EventData](entity T, builder DeleteEventBuilder[D]) (DeleteBuilder[T, D], error) {
	event := builder.Build(entity)

	deleted, err := aggregateDelete(entity, event)
	if err != nil {
		return DeleteBuilder[T, D]{}, err
	}
	return DeleteBuilder[T, D]{Entity: deleted, Event: event}, nil
}

// TryPurge builds the purge event for entity. It cannot fail.
func TryPurge[T Entity, D EventData](entity T, builder PurgeEventBuilder[D]) PurgeBuilder[T, D] {
	return PurgeBuilder[T, D]{Entity: entity, Event: builder.Build(entity)}
}

// TryFlagConflict builds the conflict event for entity and records the conflict on it.
func TryFlagConflict[T interface {
	Entity
	AggregateConflict[T, EDA, EDC]
}, EDA, EDC EventData](
	entity T,
	builder ConflictEventBuilder[EDA, EDC],
) (StorageBuilder[T, ConflictData[EDA, EDC]], error) {
	event := builder.Build(entity)

	flagged, err := entity.TryAggregateConflict(event)
	if err != nil {
		return StorageBuilder[T, ConflictData[EDA, EDC]]{}, err
	}
	return StorageBuilder[T, ConflictData[EDA, EDC]]{Entity: flagged, Event: event, op: opConflict}, nil
}

// TryAction builds the action event and lets T decide what the enum payload does.
// entity is nil when there is no prior state.
func TryAction[T interface {
	Entity
	AggregateAction[T, E]
}, E EnumEventData](builder ActionEventBuilder[E], entity *T) (StorageBuilder[T, E], error) {
	var target Entity
	if entity != nil {
		target = *entity
	}
	event := builder.Build(target)

	var zero T
	actioned, err := zero.TryAggregateAction(entity, event)
	if err != nil {
		return StorageBuilder[T, E]{}, err
	}

	op := opUpdate
	if entity == nil {
		op = opCreate
	}
	return StorageBuilder[T, E]{Entity: actioned, Event: event, op: op}, nil
}
