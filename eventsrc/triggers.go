package eventsrc

import (
	"context"
	"fmt"
)

// OnCreated is implemented by entities that perform side effects, like calling
// external APIs, once their creation has been committed.
type OnCreated interface {
	OnCreated(ctx context.Context) error
}

// OnUpdated is implemented by entities that perform side effects once an update
// has been committed.
type OnUpdated interface {
	OnUpdated(ctx context.Context) error
}

// RunTriggers runs the OnCreated or OnUpdated trigger of the entity in b, depending on
// how b was produced. Callers staging pairs into their own transaction call it after commit.
func RunTriggers[T any, D EventData](ctx context.Context, b StorageBuilder[T, D]) error {
	switch b.op {
	case opCreate:
		if t, ok := any(b.Entity).(OnCreated); ok {
			if err := t.OnCreated(ctx); err != nil {
				return fmt.Errorf("%w: on created %s %s: %w", ErrTrigger, b.Event.EntityType, b.Event.EntityID, err)
			}
		}
	case opUpdate, opConflict:
		if t, ok := any(b.Entity).(OnUpdated); ok {
			if err := t.OnUpdated(ctx); err != nil {
				return fmt.Errorf("%w: on updated %s %s: %w", ErrTrigger, b.Event.EntityType, b.Event.EntityID, err)
			}
		}
	}
	return nil
}
