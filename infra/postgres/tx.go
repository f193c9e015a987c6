package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

const eventColumns = `id, sequence_number, event_type, entity_type, entity_id, session_id, purger_id, data, created_at, purged_at`

// Tx is a pgx transaction that implements eventsrc.StorageTx. Entities persist
// themselves through the embedded pgx.Tx or through Exec.
type Tx struct {
	pgx.Tx
	db       *DB
	recorder metrics.TxRecorder
}

// Exec runs sql within the transaction. Unique violations, serialization failures and
// deadlocks are reported as eventsrc.ErrConcurrency.
func (tx *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := tx.Tx.Exec(ctx, sql, args...)
	if err != nil {
		return tag, mapError(err)
	}
	return tag, nil
}

// InsertEvent stores the event. If an event with the same id exists only its data is replaced.
func (tx *Tx) InsertEvent(ctx context.Context, event eventsrc.DBEvent) (eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (id, event_type, entity_type, entity_id, data, session_id, created_at, purger_id, purged_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data
        RETURNING %s
    `, tx.db.table(), eventColumns)

	rows, err := tx.Tx.Query(ctx, query,
		event.ID,
		event.EventType,
		event.EntityType,
		event.EntityID,
		jsonData(event.Data),
		event.SessionID,
		event.CreatedAt,
		event.PurgerID,
		event.PurgedAt,
	)
	if err != nil {
		return eventsrc.DBEvent{}, mapError(err)
	}

	stored, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[eventsrc.DBEvent])
	if err != nil {
		return eventsrc.DBEvent{}, mapError(err)
	}

	tx.recorder.EventPersisted(backendName, stored.EntityType, stored.EventType)
	return normalize(stored), nil
}

// PurgeEntityEvents clears the data of every event of the entity.
func (tx *Tx) PurgeEntityEvents(ctx context.Context, entityID uuid.UUID, purgedAt time.Time, purgerID uuid.NullUUID) error {
	query := fmt.Sprintf(`
        UPDATE %s SET data = NULL, purged_at = $2, purger_id = $3
        WHERE entity_id = $1
        RETURNING entity_type
    `, tx.db.table())

	rows, err := tx.Tx.Query(ctx, query, entityID, purgedAt, purgerID)
	if err != nil {
		return mapError(err)
	}
	entityTypes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return mapError(err)
	}

	if len(entityTypes) > 0 {
		tx.recorder.EventsPurged(backendName, entityTypes[0], int64(len(entityTypes)))
	}
	tx.db.log.DebugContext(ctx, "Events purged", "entityID", entityID, "count", len(entityTypes))
	return nil
}

// DeleteEntity removes the row of the entity from the table named after its entity type.
func (tx *Tx) DeleteEntity(ctx context.Context, entityType string, entityID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pgx.Identifier{entityType}.Sanitize())
	if _, err := tx.Exec(ctx, query, entityID); err != nil {
		return err
	}
	return nil
}

// Commit commits the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	timer := tx.db.metrics.CommitDuration(backendName)
	defer timer.ObserveDuration()

	if err := tx.Tx.Commit(ctx); err != nil {
		tx.recorder.Discard()
		return mapError(err)
	}
	tx.recorder.Flush(tx.db.metrics)
	tx.db.metrics.TxCommitted(backendName)
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	tx.recorder.Discard()
	if err := tx.Tx.Rollback(ctx); err != nil {
		return mapError(err)
	}
	tx.db.metrics.TxRolledBack(backendName)
	tx.db.log.DebugContext(ctx, "Transaction rolled back")
	return nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %w", eventsrc.ErrTxDone, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", // unique_violation
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return eventsrc.ErrConcurrency{Msg: fmt.Sprintf("concurrency error: %s", err.Error())}
		}
	}
	return err
}

// jsonData returns nil for purged payloads so they are stored as SQL NULL.
func jsonData(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return data
}

func normalize(e eventsrc.DBEvent) eventsrc.DBEvent {
	e.CreatedAt = e.CreatedAt.UTC()
	if e.PurgedAt != nil {
		purgedAt := e.PurgedAt.UTC()
		e.PurgedAt = &purgedAt
	}
	if e.IsPurged() {
		e.Data = nil
	}
	return e
}

var _ eventsrc.StorageTx = (*Tx)(nil)
