package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0m3kk/eventsauce/infra/sqlstore"
)

func TestDialect_Rebind(t *testing.T) {
	query := `SELECT * FROM events WHERE id = ? AND entity_id = ?`

	assert.Equal(t, `SELECT * FROM events WHERE id = $1 AND entity_id = $2`, sqlstore.Postgres.Rebind(query))
	assert.Equal(t, query, sqlstore.SQLite.Rebind(query))
	assert.Equal(t, query, sqlstore.MySQL.Rebind(query))
}

func TestDialect_Quote(t *testing.T) {
	assert.Equal(t, `"events"`, sqlstore.SQLite.Quote("events"))
	assert.Equal(t, `"we""ird"`, sqlstore.Postgres.Quote(`we"ird`))
	assert.Equal(t, "`events`", sqlstore.MySQL.Quote("events"))
}

func TestIsConcurrencyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "pq unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "pq serialization failure", err: fmt.Errorf("wrapped: %w", &pq.Error{Code: "40001"}), want: true},
		{name: "pq not null violation", err: &pq.Error{Code: "23502"}, want: false},
		{name: "mysql duplicate entry", err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, want: true},
		{name: "mysql syntax error", err: &mysql.MySQLError{Number: 1064}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlstore.IsConcurrencyError(tt.err))
		})
	}
}

func TestOpen_RejectsUnknownDialect(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), sqlstore.DefaultConfig("oracle"), "")
	require.Error(t, err)
}
