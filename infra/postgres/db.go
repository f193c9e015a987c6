package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/metrics"
)

const (
	backendName       = "postgres"
	defaultEventTable = "events"
)

// DB holds the database connection pool.
type DB struct {
	Pool *pgxpool.Pool

	eventsTable string
	log         *slog.Logger
	metrics     metrics.StoreMetrics
}

// Option configures a DB.
type Option func(*DB)

// WithEventsTable sets the name of the table holding the event log. Defaults to "events".
func WithEventsTable(name string) Option {
	return func(db *DB) {
		db.eventsTable = name
	}
}

// WithMetrics sets the metrics sink of the store.
func WithMetrics(m metrics.StoreMetrics) Option {
	return func(db *DB) {
		db.metrics = m
	}
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool, opts ...Option) *DB {
	db := &DB{
		Pool:        pool,
		eventsTable: defaultEventTable,
		log:         slog.Default().With(slog.String("store", backendName)),
		metrics:     metrics.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// NewDB creates a new database connection pool.
func NewDB(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return New(pool, opts...), nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{Tx: tx, db: db}, nil
}

// WithTransaction runs fn in a transaction that is available to fn through TxFromContext.
// The transaction is committed if fn returns nil and rolled back otherwise.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return eventsrc.InTransaction[*Tx](ctx, db, func(ctx context.Context, tx *Tx) error {
		// Inject the transaction into the context for stores to use.
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// TxFromContext returns the transaction opened by WithTransaction, if any.
func TxFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

// txKey is a private key type to store the transaction in the context.
type txKey struct{}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// querier returns the transaction in ctx, or the pool when there is none.
func (db *DB) querier(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Tx
	}
	return db.Pool
}

func (db *DB) table() string {
	return pgx.Identifier{db.eventsTable}.Sanitize()
}

var _ eventsrc.StorageBackend[*Tx] = (*DB)(nil)
