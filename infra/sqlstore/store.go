// Package sqlstore implements the event log on top of database/sql, with SQLite,
// PostgreSQL and MySQL dialects.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

const eventColumns = `id, sequence_number, event_type, entity_type, entity_id, session_id, purger_id, data, created_at, purged_at`

// Config contains configuration for the store.
type Config struct {
	// Dialect selects the SQL flavour and driver.
	Dialect Dialect
	// EventsTable is the name of the events table.
	EventsTable string
	// Logger receives debug output of the store. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives store instrumentation. Defaults to metrics.Nop().
	Metrics metrics.StoreMetrics
}

// DefaultConfig returns the default configuration for a dialect.
func DefaultConfig(dialect Dialect) Config {
	return Config{
		Dialect:     dialect,
		EventsTable: "events",
	}
}

// Option is a functional option for configuring a Store.
type Option func(*Config)

// WithEventsTable sets a custom events table name.
func WithEventsTable(tableName string) Option {
	return func(c *Config) {
		c.EventsTable = tableName
	}
}

// WithLogger sets the logger of the store.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics sink of the store.
func WithMetrics(m metrics.StoreMetrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// NewConfig starts from DefaultConfig and applies opts.
func NewConfig(dialect Dialect, opts ...Option) Config {
	cfg := DefaultConfig(dialect)
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Store is a database/sql backed event log.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	log     *slog.Logger
	metrics metrics.StoreMetrics
}

// Open opens a database with the driver of cfg.Dialect and checks the connection.
func Open(ctx context.Context, cfg Config, dsn string) (*Store, error) {
	if err := cfg.Dialect.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database: %w", cfg.Dialect, err)
	}
	if cfg.Dialect == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping %s database: %w", cfg.Dialect, err)
	}

	return New(db, cfg)
}

// New creates a store on an open database.
func New(db *sql.DB, cfg Config) (*Store, error) {
	if err := cfg.Dialect.validate(); err != nil {
		return nil, err
	}
	if cfg.EventsTable == "" {
		cfg.EventsTable = DefaultConfig(cfg.Dialect).EventsTable
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}

	return &Store{
		db:      db,
		dialect: cfg.Dialect,
		table:   cfg.EventsTable,
		log:     cfg.Logger.With(slog.String("store", string(cfg.Dialect))),
		metrics: cfg.Metrics,
	}, nil
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the dialect of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the events table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
	}
	s.log.InfoContext(ctx, "Event log schema ready", "table", s.table)
	return nil
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx, store: s}, nil
}

// LoadEvents returns the events of an entity in sequence order.
func (s *Store) LoadEvents(ctx context.Context, entityID uuid.UUID) ([]eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE entity_id = ? ORDER BY sequence_number ASC`,
		eventColumns, s.dialect.Quote(s.table))

	return s.collect(ctx, query, entityID)
}

// LoadEvent returns the event with the given id.
func (s *Store) LoadEvent(ctx context.Context, id uuid.UUID) (eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, eventColumns, s.dialect.Quote(s.table))

	event, err := scanEvent(s.db.QueryRowContext(ctx, s.dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eventsrc.DBEvent{}, fmt.Errorf("%w: %s", eventsrc.ErrEventNotFound, id)
		}
		return eventsrc.DBEvent{}, fmt.Errorf("failed to scan event: %w", err)
	}
	return event, nil
}

// EventsAfter returns at most limit events with a sequence number greater than after.
// A limit of zero or less returns every remaining event.
func (s *Store) EventsAfter(ctx context.Context, after int64, limit int) ([]eventsrc.DBEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE sequence_number > ? ORDER BY sequence_number ASC`,
		eventColumns, s.dialect.Quote(s.table))

	if limit > 0 {
		return s.collect(ctx, query+` LIMIT ?`, after, limit)
	}
	return s.collect(ctx, query, after)
}

func (s *Store) collect(ctx context.Context, query string, args ...any) ([]eventsrc.DBEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []eventsrc.DBEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

var (
	_ eventsrc.StorageBackend[*Tx] = (*Store)(nil)
	_ eventsrc.EventReader         = (*Store)(nil)
	_ eventsrc.EventTailer         = (*Store)(nil)
)
