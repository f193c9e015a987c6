package eventsrc

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transaction is a scoped unit of work. Writes made through it are only visible to
// others after Commit.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EventLog is the query capability the persistence orchestration needs from a transaction.
type EventLog interface {
	// InsertEvent stores the event, or only updates its data if an event with the same id
	// already exists. It returns the stored row including the assigned sequence number.
	InsertEvent(ctx context.Context, event DBEvent) (DBEvent, error)
	// PurgeEntityEvents clears the data of every stored event of the entity and records
	// when and by whom it was purged.
	PurgeEntityEvents(ctx context.Context, entityID uuid.UUID, purgedAt time.Time, purgerID uuid.NullUUID) error
	// DeleteEntity removes the materialized row of the entity.
	DeleteEntity(ctx context.Context, entityType string, entityID uuid.UUID) error
}

// StorageTx is a transaction that can write the event log.
type StorageTx interface {
	Transaction
	EventLog
}

// StorageBackend opens transactions on a concrete store.
type StorageBackend[Tx StorageTx] interface {
	Begin(ctx context.Context) (Tx, error)
}

// Persistable is implemented by values that can write themselves within a transaction.
// Persist must be idempotent, e.g. by upserting on id.
type Persistable[Tx any, Out any] interface {
	Persist(ctx context.Context, tx Tx) (Out, error)
}

// Deletable is implemented by entities that can remove themselves within a transaction.
type Deletable[Tx any] interface {
	Delete(ctx context.Context, tx Tx) error
}

// EventReader reads the stored history of entities.
type EventReader interface {
	// LoadEvents returns the events of an entity in sequence order.
	LoadEvents(ctx context.Context, entityID uuid.UUID) ([]DBEvent, error)
}

// EventTailer reads the global event log in sequence order.
type EventTailer interface {
	// EventsAfter returns at most limit events with a sequence number greater than after.
	EventsAfter(ctx context.Context, after int64, limit int) ([]DBEvent, error)
}
