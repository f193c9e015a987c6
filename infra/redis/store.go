// Package redis implements the event log and entity storage on Redis. Writes are
// queued on a MULTI/EXEC pipeline and applied atomically on commit.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

const (
	backendName   = "redis"
	defaultPrefix = "eventsauce"
)

// Store keeps events as JSON strings, ordered by sorted sets scored by sequence number.
type Store struct {
	client  goredis.UniversalClient
	prefix  string
	log     *slog.Logger
	metrics metrics.StoreMetrics
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the prefix of every key written by the store. Defaults to "eventsauce".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithMetrics sets the metrics sink of the store.
func WithMetrics(m metrics.StoreMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a store on client.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:  client,
		prefix:  defaultPrefix,
		log:     slog.Default().With(slog.String("store", backendName)),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a transaction.
func (s *Store) Begin(_ context.Context) (*Tx, error) {
	return &Tx{
		store:   s,
		pipe:    s.client.TxPipeline(),
		pending: map[uuid.UUID]eventsrc.DBEvent{},
	}, nil
}

// GetEntity decodes the committed entity of the given type and id into dst.
func (s *Store) GetEntity(ctx context.Context, entityType string, id uuid.UUID, dst any) error {
	data, err := s.client.Get(ctx, s.entityKey(entityType, id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("%w: %s %s", eventsrc.ErrEntityNotFound, entityType, id)
		}
		return fmt.Errorf("failed to get %s entity %s: %w", entityType, id, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s entity %s: %w", entityType, id, err)
	}
	return nil
}

// LoadEvent returns the committed event with the given id.
func (s *Store) LoadEvent(ctx context.Context, id uuid.UUID) (eventsrc.DBEvent, error) {
	event, ok, err := s.getEvent(ctx, id)
	if err != nil {
		return eventsrc.DBEvent{}, err
	}
	if !ok {
		return eventsrc.DBEvent{}, fmt.Errorf("%w: %s", eventsrc.ErrEventNotFound, id)
	}
	return event, nil
}

// LoadEvents returns the committed events of an entity in sequence order.
func (s *Store) LoadEvents(ctx context.Context, entityID uuid.UUID) ([]eventsrc.DBEvent, error) {
	ids, err := s.client.ZRange(ctx, s.entityEventsKey(entityID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events of entity %s: %w", entityID, err)
	}
	return s.getEvents(ctx, ids)
}

// EventsAfter returns at most limit committed events with a sequence number greater than after.
// A limit of zero or less returns every remaining event.
func (s *Store) EventsAfter(ctx context.Context, after int64, limit int) ([]eventsrc.DBEvent, error) {
	by := &goredis.ZRangeBy{
		Min: "(" + strconv.FormatInt(after, 10),
		Max: "+inf",
	}
	if limit > 0 {
		by.Count = int64(limit)
	}

	ids, err := s.client.ZRangeByScore(ctx, s.logKey(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events after %d: %w", after, err)
	}
	return s.getEvents(ctx, ids)
}

func (s *Store) getEvent(ctx context.Context, id uuid.UUID) (eventsrc.DBEvent, bool, error) {
	data, err := s.client.Get(ctx, s.eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return eventsrc.DBEvent{}, false, nil
		}
		return eventsrc.DBEvent{}, false, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	event, err := decodeEvent(data)
	if err != nil {
		return eventsrc.DBEvent{}, false, err
	}
	return event, true, nil
}

func (s *Store) getEvents(ctx context.Context, ids []string) ([]eventsrc.DBEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":event:" + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events := make([]eventsrc.DBEvent, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("event %s is indexed but missing", ids[i])
		}
		event, err := decodeEvent([]byte(raw))
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func decodeEvent(data []byte) (eventsrc.DBEvent, error) {
	var event eventsrc.DBEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return eventsrc.DBEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.IsPurged() {
		event.Data = nil
	}
	return event, nil
}

func (s *Store) seqKey() string { return s.prefix + ":seq" }
func (s *Store) logKey() string { return s.prefix + ":log" }

func (s *Store) eventKey(id uuid.UUID) string {
	return s.prefix + ":event:" + id.String()
}

func (s *Store) entityEventsKey(entityID uuid.UUID) string {
	return s.prefix + ":entity:" + entityID.String() + ":events"
}

func (s *Store) entityKey(entityType string, id uuid.UUID) string {
	return s.prefix + ":entities:" + entityType + ":" + id.String()
}

var (
	_ eventsrc.StorageBackend[*Tx] = (*Store)(nil)
	_ eventsrc.EventReader         = (*Store)(nil)
	_ eventsrc.EventTailer         = (*Store)(nil)
)
