package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

// Tx queues writes on a MULTI/EXEC pipeline. Sequence numbers are taken from an INCR
// counter when an event is first inserted, so rolled back transactions leave gaps.
type Tx struct {
	store    *Store
	pipe     goredis.Pipeliner
	pending  map[uuid.UUID]eventsrc.DBEvent
	recorder metrics.TxRecorder
	done     bool
}

// InsertEvent queues the event. Re-inserting a known id only replaces its data.
func (tx *Tx) InsertEvent(ctx context.Context, event eventsrc.DBEvent) (eventsrc.DBEvent, error) {
	if tx.done {
		return eventsrc.DBEvent{}, eventsrc.ErrTxDone
	}

	existing, ok := tx.pending[event.ID]
	if !ok {
		var err error
		existing, ok, err = tx.store.getEvent(ctx, event.ID)
		if err != nil {
			return eventsrc.DBEvent{}, err
		}
	}

	stored := event
	if ok {
		stored = existing
		stored.Data = event.Data
	} else {
		seq, err := tx.store.client.Incr(ctx, tx.store.seqKey()).Result()
		if err != nil {
			return eventsrc.DBEvent{}, fmt.Errorf("failed to allocate sequence number: %w", err)
		}
		stored.SequenceNumber = &seq

		member := goredis.Z{Score: float64(seq), Member: stored.ID.String()}
		tx.pipe.ZAdd(ctx, tx.store.logKey(), member)
		tx.pipe.ZAdd(ctx, tx.store.entityEventsKey(stored.EntityID), member)
		tx.recorder.EventPersisted(backendName, stored.EntityType, stored.EventType)
	}

	if err := tx.setEvent(ctx, stored); err != nil {
		return eventsrc.DBEvent{}, err
	}
	return stored, nil
}

// PurgeEntityEvents queues the scrubbing of every event of the entity.
func (tx *Tx) PurgeEntityEvents(ctx context.Context, entityID uuid.UUID, purgedAt time.Time, purgerID uuid.NullUUID) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}

	committed, err := tx.store.LoadEvents(ctx, entityID)
	if err != nil {
		return err
	}

	events := map[uuid.UUID]eventsrc.DBEvent{}
	for _, e := range committed {
		events[e.ID] = e
	}
	for id, e := range tx.pending {
		if e.EntityID == entityID {
			events[id] = e
		}
	}

	var entityType string
	for _, e := range events {
		at := purgedAt
		e.Data = nil
		e.PurgedAt = &at
		e.PurgerID = purgerID
		if err := tx.setEvent(ctx, e); err != nil {
			return err
		}
		entityType = e.EntityType
	}

	if len(events) > 0 {
		tx.recorder.EventsPurged(backendName, entityType, int64(len(events)))
	}
	tx.store.log.DebugContext(ctx, "Events purged", "entityID", entityID, "count", len(events))
	return nil
}

// DeleteEntity queues the removal of the entity.
func (tx *Tx) DeleteEntity(ctx context.Context, entityType string, entityID uuid.UUID) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}
	tx.pipe.Del(ctx, tx.store.entityKey(entityType, entityID))
	return nil
}

// PutEntity queues the upsert of an entity, stored as JSON.
func (tx *Tx) PutEntity(ctx context.Context, entityType string, entityID uuid.UUID, entity any) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s entity %s: %w", entityType, entityID, err)
	}
	tx.pipe.Set(ctx, tx.store.entityKey(entityType, entityID), data, 0)
	return nil
}

// Commit executes the queued writes atomically.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}
	tx.done = true

	timer := tx.store.metrics.CommitDuration(backendName)
	defer timer.ObserveDuration()

	if _, err := tx.pipe.Exec(ctx); err != nil {
		tx.recorder.Discard()
		if errors.Is(err, goredis.TxFailedErr) {
			return eventsrc.ErrConcurrency{Msg: fmt.Sprintf("concurrency error: %s", err.Error())}
		}
		return fmt.Errorf("failed to execute transaction: %w", err)
	}

	tx.recorder.Flush(tx.store.metrics)
	tx.store.metrics.TxCommitted(backendName)
	return nil
}

// Rollback discards the queued writes.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}
	tx.done = true
	tx.pipe.Discard()
	tx.recorder.Discard()

	tx.store.metrics.TxRolledBack(backendName)
	tx.store.log.DebugContext(ctx, "Transaction rolled back")
	return nil
}

func (tx *Tx) setEvent(ctx context.Context, event eventsrc.DBEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}
	tx.pipe.Set(ctx, tx.store.eventKey(event.ID), data, 0)
	tx.pending[event.ID] = event
	return nil
}

var _ eventsrc.StorageTx = (*Tx)(nil)
