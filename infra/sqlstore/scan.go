package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/0m3kk/eventsauce/eventsrc"
)

var timeLayouts = []string{
	sqliteTimeFormat,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// nullTime scans timestamps returned either as time.Time or as text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	}
	return fmt.Errorf("can not scan %T into a timestamp", src)
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("can not parse timestamp %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (eventsrc.DBEvent, error) {
	var (
		e         eventsrc.DBEvent
		sequence  int64
		data      sql.NullString
		createdAt nullTime
		purgedAt  nullTime
	)
	err := row.Scan(
		&e.ID,
		&sequence,
		&e.EventType,
		&e.EntityType,
		&e.EntityID,
		&e.SessionID,
		&e.PurgerID,
		&data,
		&createdAt,
		&purgedAt,
	)
	if err != nil {
		return eventsrc.DBEvent{}, err
	}

	e.SequenceNumber = &sequence
	if data.Valid && data.String != "null" {
		e.Data = []byte(data.String)
	}
	e.CreatedAt = createdAt.Time
	e.PurgedAt = purgedAt.ptr()
	return e, nil
}
