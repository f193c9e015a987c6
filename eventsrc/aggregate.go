package eventsrc

// AggregateCreate is implemented by entities that can be created from an event with payload D.
// TryAggregateCreate is called on the zero value of T and must not depend on its receiver.
type AggregateCreate[T any, D EventData] interface {
	TryAggregateCreate(event Event[D]) (T, error)
}

// AggregateUpdate is implemented by entities that can be updated by an event with payload D.
// The receiver is the current state; the returned value replaces it.
type AggregateUpdate[T any, D EventData] interface {
	TryAggregateUpdate(event Event[D]) (T, error)
}

// AggregateDelete is an optional hook for entities that keep denormalized state which
// needs adjusting before deletion. Entities that do not implement it are left unchanged,
// the deletion itself is enacted by the storage layer.
type AggregateDelete[T any, D EventData] interface {
	TryAggregateDelete(event Event[D]) (T, error)
}

// Deletion is implemented by payloads that end the life of an entity. Replay forgets
// the entity once it applies an event whose payload reports IsDeletion.
type Deletion interface {
	IsDeletion() bool
}

// AggregateConflict is implemented by entities that record unresolved conflicts.
// It must only do bookkeeping (e.g. set a conflicted flag) and never apply the
// conflicting payload.
type AggregateConflict[T any, EDA, EDC EventData] interface {
	TryAggregateConflict(event Event[ConflictData[EDA, EDC]]) (T, error)
}

// AggregateAction is implemented by entities that accept an enum payload deciding
// between creation, update and deletion. TryAggregateAction is called on the zero value
// of T; entity is nil when no prior state exists. Implementations should delegate to
// ActionCreate, ActionUpdate, ActionDelete and ActionPurged.
type AggregateAction[T any, E EnumEventData] interface {
	TryAggregateAction(entity *T, event Event[E]) (T, error)
}

// ActionCreate narrows an action event to the variant V and creates T from it.
func ActionCreate[V EventData, T AggregateCreate[T, V], E EnumEventData](event Event[E]) (T, error) {
	var zero T
	variant, err := IntoVariant[V](event)
	if err != nil {
		return zero, err
	}
	if variant.Data == nil {
		return zero, emptyEventData(zero, event.EventType)
	}
	return zero.TryAggregateCreate(variant)
}

// ActionUpdate narrows an action event to the variant V and updates entity with it.
func ActionUpdate[V EventData, T AggregateUpdate[T, V], E EnumEventData](entity *T, event Event[E]) (T, error) {
	var zero T
	if entity == nil {
		return zero, missingEntity(event.EntityType, event.EventType)
	}
	variant, err := IntoVariant[V](event)
	if err != nil {
		return zero, err
	}
	if variant.Data == nil {
		return zero, emptyEventData(zero, event.EventType)
	}
	return (*entity).TryAggregateUpdate(variant)
}

// ActionDelete narrows an action event to the variant V and applies the deletion to entity.
func ActionDelete[V EventData, T any, E EnumEventData](entity *T, event Event[E]) (T, error) {
	var zero T
	if entity == nil {
		return zero, missingEntity(event.EntityType, event.EventType)
	}
	variant, err := IntoVariant[V](event)
	if err != nil {
		return zero, err
	}
	return aggregateDelete(*entity, variant)
}

// ActionPurged handles an action event whose payload has been purged: an existing
// entity is returned unchanged, a missing one is an error.
func ActionPurged[T any, E EnumEventData](entity *T, event Event[E]) (T, error) {
	if entity == nil {
		var zero T
		return zero, missingEntity(event.EntityType, event.EventType)
	}
	return *entity, nil
}

func aggregateDelete[T any, D EventData](entity T, event Event[D]) (T, error) {
	if d, ok := any(entity).(AggregateDelete[T, D]); ok {
		return d.TryAggregateDelete(event)
	}
	return entity, nil
}

func isDeletion[E EnumEventData](event Event[E]) bool {
	if event.Data == nil {
		return false
	}
	if d, ok := any(*event.Data).(Deletion); ok {
		return d.IsDeletion()
	}
	d, ok := (*event.Data).Variant().(Deletion)
	return ok && d.IsDeletion()
}
