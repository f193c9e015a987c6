package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id              uuid PRIMARY KEY,
    sequence_number bigserial NOT NULL UNIQUE,
    event_type      varchar(64) NOT NULL,
    entity_type     varchar(64) NOT NULL,
    entity_id       uuid NOT NULL,
    data            jsonb NULL,
    session_id      uuid NULL,
    created_at      timestamptz NOT NULL,
    purger_id       uuid NULL,
    purged_at       timestamptz NULL
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (entity_id, sequence_number);
`

// Migrate creates the events table and its indexes if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	index := pgx.Identifier{db.eventsTable + "_entity_id_idx"}.Sanitize()
	if _, err := db.Pool.Exec(ctx, fmt.Sprintf(schema, db.table(), index)); err != nil {
		return fmt.Errorf("failed to create %s table: %w", db.eventsTable, err)
	}
	db.log.InfoContext(ctx, "Event log schema ready", "table", db.eventsTable)
	return nil
}
