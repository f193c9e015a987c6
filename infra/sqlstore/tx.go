package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

// Tx is a database/sql transaction that implements eventsrc.StorageTx. Statements
// passed to ExecContext and QueryContext use '?' placeholders in every dialect.
type Tx struct {
	tx       *sql.Tx
	store    *Store
	recorder metrics.TxRecorder
}

// Dialect returns the dialect of the store the transaction belongs to.
func (tx *Tx) Dialect() Dialect { return tx.store.dialect }

// ExecContext executes a statement within the transaction. Concurrent modifications
// are reported as eventsrc.ErrConcurrency.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := tx.tx.ExecContext(ctx, tx.store.dialect.Rebind(query), args...)
	return res, mapError(err)
}

// QueryContext runs a query within the transaction.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := tx.tx.QueryContext(ctx, tx.store.dialect.Rebind(query), args...)
	return rows, mapError(err)
}

// InsertEvent stores the event. If an event with the same id exists only its data is replaced.
func (tx *Tx) InsertEvent(ctx context.Context, event eventsrc.DBEvent) (eventsrc.DBEvent, error) {
	d := tx.store.dialect
	createdAt := event.CreatedAt

	_, err := tx.ExecContext(ctx, d.upsert(tx.store.table),
		event.ID,
		event.EventType,
		event.EntityType,
		event.EntityID,
		jsonArg(event.Data),
		event.SessionID,
		d.timeArg(&createdAt),
		event.PurgerID,
		d.timeArg(event.PurgedAt),
	)
	if err != nil {
		return eventsrc.DBEvent{}, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, eventColumns, d.Quote(tx.store.table))
	stored, err := scanEvent(tx.tx.QueryRowContext(ctx, d.Rebind(query), event.ID))
	if err != nil {
		return eventsrc.DBEvent{}, fmt.Errorf("failed to read back event %s: %w", event.ID, mapError(err))
	}

	tx.recorder.EventPersisted(string(d), stored.EntityType, stored.EventType)
	return stored, nil
}

// PurgeEntityEvents clears the data of every event of the entity.
func (tx *Tx) PurgeEntityEvents(ctx context.Context, entityID uuid.UUID, purgedAt time.Time, purgerID uuid.NullUUID) error {
	d := tx.store.dialect
	query := fmt.Sprintf(`UPDATE %s SET data = NULL, purged_at = ?, purger_id = ? WHERE entity_id = ?`, d.Quote(tx.store.table))

	res, err := tx.ExecContext(ctx, query, d.timeArg(&purgedAt), purgerID, entityID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count purged events: %w", err)
	}

	if n > 0 {
		var entityType string
		query = fmt.Sprintf(`SELECT entity_type FROM %s WHERE entity_id = ? LIMIT 1`, d.Quote(tx.store.table))
		if err := tx.tx.QueryRowContext(ctx, d.Rebind(query), entityID).Scan(&entityType); err != nil {
			return fmt.Errorf("failed to read purged entity type: %w", mapError(err))
		}
		tx.recorder.EventsPurged(string(d), entityType, n)
	}
	tx.store.log.DebugContext(ctx, "Events purged", "entityID", entityID, "count", n)
	return nil
}

// DeleteEntity removes the row of the entity from the table named after its entity type.
func (tx *Tx) DeleteEntity(ctx context.Context, entityType string, entityID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tx.store.dialect.Quote(entityType))
	_, err := tx.ExecContext(ctx, query, entityID)
	return err
}

// Commit commits the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	backend := string(tx.store.dialect)
	timer := tx.store.metrics.CommitDuration(backend)
	defer timer.ObserveDuration()

	if err := tx.tx.Commit(); err != nil {
		tx.recorder.Discard()
		return mapError(err)
	}
	tx.recorder.Flush(tx.store.metrics)
	tx.store.metrics.TxCommitted(backend)
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	tx.recorder.Discard()
	if err := tx.tx.Rollback(); err != nil {
		return mapError(err)
	}
	tx.store.metrics.TxRolledBack(string(tx.store.dialect))
	tx.store.log.DebugContext(ctx, "Transaction rolled back")
	return nil
}

var _ eventsrc.StorageTx = (*Tx)(nil)
