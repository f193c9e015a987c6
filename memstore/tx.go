package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/0m3kk/eventsauce/eventsrc"
)

// Tx stages writes against a Store. Nothing is visible to readers until Commit.
type Tx struct {
	store   *Store
	ops     []func(s *Store)
	pending map[uuid.UUID]eventsrc.DBEvent
	done    bool
}

// InsertEvent stages the event. Re-inserting a known id only replaces its data.
func (tx *Tx) InsertEvent(_ context.Context, event eventsrc.DBEvent) (eventsrc.DBEvent, error) {
	if tx.done {
		return eventsrc.DBEvent{}, eventsrc.ErrTxDone
	}

	existing, ok := tx.pending[event.ID]
	if !ok {
		existing, ok = tx.committed(event.ID)
	}

	var stored eventsrc.DBEvent
	if ok {
		stored = cloneEvent(existing)
		stored.Data = event.Data
		tx.ops = append(tx.ops, func(s *Store) {
			if i, found := s.byID[event.ID]; found {
				s.events[i].Data = event.Data
			}
		})
	} else {
		stored = cloneEvent(event)
		seq := tx.store.seq.Add(1)
		stored.SequenceNumber = &seq
		staged := cloneEvent(stored)
		tx.ops = append(tx.ops, func(s *Store) {
			if i, found := s.byID[staged.ID]; found {
				s.events[i].Data = staged.Data
				return
			}
			s.insert(staged)
			s.metrics.EventPersisted(backendName, staged.EntityType, staged.EventType)
		})
	}

	tx.pending[event.ID] = stored
	return cloneEvent(stored), nil
}

// PurgeEntityEvents stages the scrubbing of every event of the entity.
func (tx *Tx) PurgeEntityEvents(_ context.Context, entityID uuid.UUID, purgedAt time.Time, purgerID uuid.NullUUID) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}

	for id, e := range tx.pending {
		if e.EntityID == entityID {
			e.Data = nil
			e.PurgedAt = &purgedAt
			e.PurgerID = purgerID
			tx.pending[id] = e
		}
	}

	tx.ops = append(tx.ops, func(s *Store) {
		var purged int64
		var entityType string
		for i := range s.events {
			if s.events[i].EntityID != entityID {
				continue
			}
			at := purgedAt
			s.events[i].Data = nil
			s.events[i].PurgedAt = &at
			s.events[i].PurgerID = purgerID
			entityType = s.events[i].EntityType
			purged++
		}
		s.metrics.EventsPurged(backendName, entityType, purged)
	})
	return nil
}

// DeleteEntity stages the removal of the entity.
func (tx *Tx) DeleteEntity(_ context.Context, entityType string, entityID uuid.UUID) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}

	tx.ops = append(tx.ops, func(s *Store) {
		delete(s.entities[entityType], entityID)
	})
	return nil
}

// PutEntity stages the upsert of an entity value.
func (tx *Tx) PutEntity(_ context.Context, entityType string, entityID uuid.UUID, entity any) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}

	tx.ops = append(tx.ops, func(s *Store) {
		if s.entities[entityType] == nil {
			s.entities[entityType] = map[uuid.UUID]any{}
		}
		s.entities[entityType][entityID] = entity
	})
	return nil
}

// Commit applies the staged writes atomically.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}
	tx.done = true

	timer := tx.store.metrics.CommitDuration(backendName)
	defer timer.ObserveDuration()

	tx.store.mu.Lock()
	for _, op := range tx.ops {
		op(tx.store)
	}
	tx.store.mu.Unlock()

	tx.store.log.DebugContext(ctx, "Transaction committed", "writes", len(tx.ops))
	tx.store.metrics.TxCommitted(backendName)
	return nil
}

// Rollback discards the staged writes.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return eventsrc.ErrTxDone
	}
	tx.done = true
	tx.ops = nil

	tx.store.log.DebugContext(ctx, "Transaction rolled back")
	tx.store.metrics.TxRolledBack(backendName)
	return nil
}

func (tx *Tx) committed(id uuid.UUID) (eventsrc.DBEvent, bool) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	i, ok := tx.store.byID[id]
	if !ok {
		return eventsrc.DBEvent{}, false
	}
	return cloneEvent(tx.store.events[i]), true
}

var _ eventsrc.StorageTx = (*Tx)(nil)
