package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/0m3kk/eventsauce/eventsrc"
)

// LoadEvents returns the events of an entity in sequence order. Inside WithTransaction
// it reads through the transaction.
func (db *DB) LoadEvents(ctx context.Context, entityID uuid.UUID) ([]eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE entity_id = $1
        ORDER BY sequence_number ASC
    `, eventColumns, db.table())

	return db.collect(ctx, query, entityID)
}

// LoadEvent returns the event with the given id.
func (db *DB) LoadEvent(ctx context.Context, id uuid.UUID) (eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, eventColumns, db.table())

	rows, err := db.querier(ctx).Query(ctx, query, id)
	if err != nil {
		return eventsrc.DBEvent{}, fmt.Errorf("failed to query event: %w", err)
	}
	event, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[eventsrc.DBEvent])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eventsrc.DBEvent{}, fmt.Errorf("%w: %s", eventsrc.ErrEventNotFound, id)
		}
		return eventsrc.DBEvent{}, fmt.Errorf("failed to scan event row: %w", err)
	}
	return normalize(event), nil
}

// EventsAfter returns at most limit events with a sequence number greater than after.
// A limit of zero or less returns every remaining event.
func (db *DB) EventsAfter(ctx context.Context, after int64, limit int) ([]eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE sequence_number > $1
        ORDER BY sequence_number ASC
        LIMIT $2
    `, eventColumns, db.table())

	var n any
	if limit > 0 {
		n = limit
	}
	return db.collect(ctx, query, after, n)
}

func (db *DB) collect(ctx context.Context, query string, args ...any) ([]eventsrc.DBEvent, error) {
	rows, err := db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[eventsrc.DBEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}
	for i := range events {
		events[i] = normalize(events[i])
	}
	return events, nil
}

var (
	_ eventsrc.EventReader = (*DB)(nil)
	_ eventsrc.EventTailer = (*DB)(nil)
)
