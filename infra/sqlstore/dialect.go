package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect selects the SQL flavour and the database/sql driver of a Store.
type Dialect string

const (
	// SQLite uses the pure Go modernc.org/sqlite driver.
	SQLite Dialect = "sqlite"
	// Postgres uses the github.com/lib/pq driver.
	Postgres Dialect = "postgres"
	// MySQL uses the github.com/go-sql-driver/mysql driver. DSNs should set parseTime=true.
	MySQL Dialect = "mysql"
)

// sqliteTimeFormat is the format timestamps are stored with in SQLite.
const sqliteTimeFormat = "2006-01-02 15:04:05.999999"

func (d Dialect) driverName() string {
	return string(d)
}

func (d Dialect) validate() error {
	switch d {
	case SQLite, Postgres, MySQL:
		return nil
	}
	return fmt.Errorf("unsupported dialect %q", d)
}

// Quote quotes an identifier such as a table name.
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Rebind rewrites '?' placeholders into the placeholder style of the dialect.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// schema returns the statements creating the events table and its indexes.
func (d Dialect) schema(table string) []string {
	t := d.Quote(table)
	index := d.Quote(table + "_entity_id_idx")

	switch d {
	case SQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
				id              TEXT NOT NULL UNIQUE,
				event_type      TEXT NOT NULL,
				entity_type     TEXT NOT NULL,
				entity_id       TEXT NOT NULL,
				data            TEXT NULL,
				session_id      TEXT NULL,
				created_at      TEXT NOT NULL,
				purger_id       TEXT NULL,
				purged_at       TEXT NULL
			)`, t),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (entity_id, sequence_number)`, index, t),
		}
	case MySQL:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				sequence_number BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				id              CHAR(36) NOT NULL UNIQUE,
				event_type      VARCHAR(64) NOT NULL,
				entity_type     VARCHAR(64) NOT NULL,
				entity_id       CHAR(36) NOT NULL,
				data            JSON NULL,
				session_id      CHAR(36) NULL,
				created_at      DATETIME(6) NOT NULL,
				purger_id       CHAR(36) NULL,
				purged_at       DATETIME(6) NULL,
				INDEX %s (entity_id, sequence_number)
			)`, t, index),
		}
	default:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
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
			)`, t),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (entity_id, sequence_number)`, index, t),
		}
	}
}

// upsert returns the statement inserting an event or replacing the data of an existing one.
func (d Dialect) upsert(table string) string {
	insert := fmt.Sprintf(`INSERT INTO %s (id, event_type, entity_type, entity_id, data, session_id, created_at, purger_id, purged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, d.Quote(table))

	if d == MySQL {
		return insert + ` ON DUPLICATE KEY UPDATE data = VALUES(data)`
	}
	return insert + ` ON CONFLICT (id) DO UPDATE SET data = excluded.data`
}

// timeArg converts a timestamp into the value bound to a statement.
func (d Dialect) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	if d == SQLite {
		return t.UTC().Format(sqliteTimeFormat)
	}
	return t.UTC()
}

// jsonArg converts an event payload into the value bound to a statement.
// Purged payloads are stored as SQL NULL.
func jsonArg(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
