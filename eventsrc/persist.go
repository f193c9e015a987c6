package eventsrc

import (
	"context"
	"fmt"
	"log/slog"
)

// InTransaction runs fn within a transaction opened on backend. The transaction is
// committed if fn returns nil and rolled back otherwise, including when fn panics.
func InTransaction[Tx StorageTx](ctx context.Context, backend StorageBackend[Tx], fn func(ctx context.Context, tx Tx) error) error {
	tx, err := backend.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// StagePersist writes the event and then the entity into a caller-supplied transaction,
// so several pairs can be committed together. Triggers are not run.
func StagePersist[Tx StorageTx, T Persistable[Tx, T], D EventData](ctx context.Context, tx Tx, b StorageBuilder[T, D]) (T, error) {
	var zero T
	if err := stageEvent(ctx, tx, b.Event); err != nil {
		return zero, err
	}

	entity, err := b.Entity.Persist(ctx, tx)
	if err != nil {
		return zero, fmt.Errorf("failed to persist %s entity %s: %w", b.Event.EntityType, b.Event.EntityID, err)
	}
	return entity, nil
}

// Persist writes the event and the entity in a transaction of its own. On success the
// OnCreated or OnUpdated trigger of the entity runs after the commit.
func Persist[Tx StorageTx, T Persistable[Tx, T], D EventData](ctx context.Context, backend StorageBackend[Tx], b StorageBuilder[T, D]) (T, error) {
	var entity T
	err := InTransaction(ctx, backend, func(ctx context.Context, tx Tx) error {
		var err error
		entity, err = StagePersist(ctx, tx, b)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}

	b.Entity = entity
	return entity, RunTriggers(ctx, b)
}

// StageDelete writes the deletion event and removes the entity within a caller-supplied transaction.
func StageDelete[Tx StorageTx, T Deletable[Tx], D EventData](ctx context.Context, tx Tx, b DeleteBuilder[T, D]) error {
	if err := stageEvent(ctx, tx, b.Event); err != nil {
		return err
	}
	if err := b.Entity.Delete(ctx, tx); err != nil {
		return fmt.Errorf("failed to delete %s entity %s: %w", b.Event.EntityType, b.Event.EntityID, err)
	}
	return nil
}

// Delete writes the deletion event and removes the entity in a transaction of its own.
func Delete[Tx StorageTx, T Deletable[Tx], D EventData](ctx context.Context, backend StorageBackend[Tx], b DeleteBuilder[T, D]) error {
	return InTransaction(ctx, backend, func(ctx context.Context, tx Tx) error {
		return StageDelete(ctx, tx, b)
	})
}

// StagePurge removes the entity row, scrubs the data of all its prior events and
// stores the purge event, within a caller-supplied transaction.
func StagePurge[Tx StorageTx, T Entity, D EventData](ctx context.Context, tx Tx, b PurgeBuilder[T, D]) error {
	entityType, entityID := b.Entity.EntityType(), b.Entity.EntityID()

	purgedAt := now()
	if b.Event.PurgedAt != nil {
		purgedAt = *b.Event.PurgedAt
	}

	if err := tx.DeleteEntity(ctx, entityType, entityID); err != nil {
		return fmt.Errorf("failed to delete %s entity %s: %w", entityType, entityID, err)
	}
	if err := tx.PurgeEntityEvents(ctx, entityID, purgedAt, b.Event.PurgerID); err != nil {
		return fmt.Errorf("failed to purge events of %s entity %s: %w", entityType, entityID, err)
	}
	if err := stageEvent(ctx, tx, b.Event); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Entity purged", "entityType", entityType, "entityID", entityID, "purgerID", b.Event.PurgerID.UUID)
	return nil
}

// Purge runs StagePurge in a transaction of its own.
func Purge[Tx StorageTx, T Entity, D EventData](ctx context.Context, backend StorageBackend[Tx], b PurgeBuilder[T, D]) error {
	return InTransaction(ctx, backend, func(ctx context.Context, tx Tx) error {
		return StagePurge(ctx, tx, b)
	})
}

// StageChecked persists whichever pair of a conflict-checked aggregation is present.
func StageChecked[Tx StorageTx, T Persistable[Tx, T], EDA, D EventData](ctx context.Context, tx Tx, c CheckedBuilder[T, EDA, D]) (T, error) {
	if c.Conflict != nil {
		return StagePersist(ctx, tx, *c.Conflict)
	}
	return StagePersist(ctx, tx, *c.Applied)
}

// PersistChecked persists whichever pair of a conflict-checked aggregation is present
// in a transaction of its own.
func PersistChecked[Tx StorageTx, T Persistable[Tx, T], EDA, D EventData](ctx context.Context, backend StorageBackend[Tx], c CheckedBuilder[T, EDA, D]) (T, error) {
	if c.Conflict != nil {
		slog.WarnContext(ctx, "Persisting conflict instead of update",
			"entityType", c.Conflict.Event.EntityType, "entityID", c.Conflict.Event.EntityID)
		return Persist(ctx, backend, *c.Conflict)
	}
	return Persist(ctx, backend, *c.Applied)
}

func stageEvent[Tx StorageTx, D EventData](ctx context.Context, tx Tx, event Event[D]) error {
	dbEvent, err := ToDBEvent(event)
	if err != nil {
		return err
	}
	stored, err := tx.InsertEvent(ctx, dbEvent)
	if err != nil {
		return fmt.Errorf("failed to persist %s event %s: %w", event.EventType, event.ID, err)
	}

	var sequence int64
	if stored.SequenceNumber != nil {
		sequence = *stored.SequenceNumber
	}
	slog.DebugContext(ctx, "Event staged",
		"eventID", stored.ID, "eventType", stored.EventType, "entityID", stored.EntityID, "sequence", sequence)
	return nil
}
