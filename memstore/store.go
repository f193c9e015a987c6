// Package memstore is an in-memory, transactional implementation of the event log
// and entity storage, for tests and local development.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

const backendName = "memory"

// Store keeps committed events and entities in memory. Writes only become visible
// when the transaction that staged them commits.
type Store struct {
	mu       sync.RWMutex
	log      *slog.Logger
	metrics  metrics.StoreMetrics
	seq      atomic.Int64
	events   []eventsrc.DBEvent
	byID     map[uuid.UUID]int
	entities map[string]map[uuid.UUID]any
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics sets the metrics sink of the store.
func WithMetrics(m metrics.StoreMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		log:      slog.Default().With(slog.String("store", backendName)),
		metrics:  metrics.Nop(),
		byID:     map[uuid.UUID]int{},
		entities: map[string]map[uuid.UUID]any{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a transaction.
func (s *Store) Begin(_ context.Context) (*Tx, error) {
	return &Tx{store: s, pending: map[uuid.UUID]eventsrc.DBEvent{}}, nil
}

// Entity returns the committed entity of the given type and id.
func (s *Store) Entity(entityType string, id uuid.UUID) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[entityType][id]
	return entity, ok
}

// LoadEvent returns the committed event with the given id.
func (s *Store) LoadEvent(_ context.Context, id uuid.UUID) (eventsrc.DBEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return eventsrc.DBEvent{}, fmt.Errorf("%w: %s", eventsrc.ErrEventNotFound, id)
	}
	return cloneEvent(s.events[i]), nil
}

// LoadEvents returns the committed events of an entity in sequence order.
func (s *Store) LoadEvents(_ context.Context, entityID uuid.UUID) ([]eventsrc.DBEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []eventsrc.DBEvent
	for _, e := range s.events {
		if e.EntityID == entityID {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

// EventsAfter returns at most limit committed events with a sequence number greater than after.
func (s *Store) EventsAfter(_ context.Context, after int64, limit int) ([]eventsrc.DBEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.events), func(i int) bool {
		return *s.events[i].SequenceNumber > after
	})

	var out []eventsrc.DBEvent
	for ; i < len(s.events) && (limit <= 0 || len(out) < limit); i++ {
		out = append(out, cloneEvent(s.events[i]))
	}
	return out, nil
}

// insert appends an event keeping the log ordered by sequence number.
// Callers hold the write lock.
func (s *Store) insert(e eventsrc.DBEvent) {
	i := sort.Search(len(s.events), func(i int) bool {
		return *s.events[i].SequenceNumber > *e.SequenceNumber
	})
	s.events = append(s.events, eventsrc.DBEvent{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = e
	for j := i; j < len(s.events); j++ {
		s.byID[s.events[j].ID] = j
	}
}

func cloneEvent(e eventsrc.DBEvent) eventsrc.DBEvent {
	out := e
	if e.SequenceNumber != nil {
		seq := *e.SequenceNumber
		out.SequenceNumber = &seq
	}
	if e.PurgedAt != nil {
		purgedAt := *e.PurgedAt
		out.PurgedAt = &purgedAt
	}
	if e.Data != nil {
		out.Data = append([]byte(nil), e.Data...)
	}
	return out
}

var (
	_ eventsrc.StorageBackend[*Tx] = (*Store)(nil)
	_ eventsrc.EventReader         = (*Store)(nil)
	_ eventsrc.EventTailer         = (*Store)(nil)
)
