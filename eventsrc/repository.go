package eventsrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrEntityNotFound is returned by Repository.Load when an entity has no live history.
var ErrEntityNotFound = errors.New("entity not found")

// Repository rebuilds entities by replaying their stored history through AggregateAction.
// All events of the entity must decode into the enum payload E.
type Repository[T AggregateAction[T, E], E EnumEventData] struct {
	reader   EventReader
	variants *VariantRegistry[E]
}

// NewRepository creates a repository reading from reader and decoding with variants.
func NewRepository[T AggregateAction[T, E], E EnumEventData](reader EventReader, variants *VariantRegistry[E]) *Repository[T, E] {
	return &Repository[T, E]{reader: reader, variants: variants}
}

// Load replays the history of the entity with the given id.
func (r *Repository[T, E]) Load(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T

	history, err := r.reader.LoadEvents(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("failed to load history of entity %s: %w", id, err)
	}

	entity, err := Replay[T](history, r.variants)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to replay entity history", "entityID", id, "events", len(history), "error", err)
		return zero, err
	}
	if entity == nil {
		return zero, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return *entity, nil
}

// Replay folds a history of stored events into an entity. Purged events are skipped
// while no entity exists yet, and a Deletion payload drops the entity again. Conflict
// events are applied through AggregateConflict[T, E, E] when T implements it and leave
// the entity unchanged otherwise. It returns nil if the history leaves no entity.
func Replay[T AggregateAction[T, E], E EnumEventData](history []DBEvent, variants *VariantRegistry[E]) (*T, error) {
	var entity *T
	var zero T
	for _, stored := range history {
		if stored.IsPurged() && entity == nil {
			continue
		}

		if stored.EventType == ConflictEventType {
			next, err := replayConflict(entity, stored, variants)
			if err != nil {
				return nil, err
			}
			entity = next
			continue
		}

		event, err := EnumFromDBEvent(stored, variants)
		if err != nil {
			return nil, err
		}

		next, err := zero.TryAggregateAction(entity, event)
		if err != nil {
			return nil, fmt.Errorf("failed to apply %s event %s: %w", stored.EventType, stored.ID, err)
		}
		if isDeletion(event) {
			entity = nil
			continue
		}
		entity = &next
	}
	return entity, nil
}

func replayConflict[T any, E EnumEventData](entity *T, stored DBEvent, variants *VariantRegistry[E]) (*T, error) {
	if entity == nil {
		return nil, missingEntity(stored.EntityType, ConflictEventType)
	}
	flagger, ok := any(*entity).(AggregateConflict[T, E, E])
	if !ok || stored.IsPurged() {
		return entity, nil
	}

	event, err := DecodeConflict(stored, variants)
	if err != nil {
		return nil, err
	}
	next, err := flagger.TryAggregateConflict(event)
	if err != nil {
		return nil, fmt.Errorf("failed to apply conflict event %s: %w", stored.ID, err)
	}
	return &next, nil
}
