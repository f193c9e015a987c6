package eventsrc

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEventData is returned when an aggregation requires a payload but the event was purged.
	ErrEmptyEventData = errors.New("event data must be populated")
	// ErrMissingEntity is returned when an update, delete or action requires a prior entity state.
	ErrMissingEntity = errors.New("entity is required")
	// ErrConversion is returned when an event cannot be converted between representations.
	ErrConversion = errors.New("event conversion failed")
	// ErrUnknownEventType is returned when no enum variant is registered for an event type.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrTrigger is returned when an entity trigger fails after a successful commit.
	ErrTrigger = errors.New("entity trigger failed")
	// ErrEventNotFound is returned by adapters when no event exists with the requested id.
	ErrEventNotFound = errors.New("event not found")
	// ErrTxDone is returned by adapters when a finished transaction is used again.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
)

// ErrConcurrency is returned when an event store operation fails due to
// a concurrent modification (unique violation, serialization failure, deadlock).
// It is the only error Retry considers transient.
type ErrConcurrency struct {
	Msg string
}

func (e ErrConcurrency) Error() string {
	return e.Msg
}

// ConversionError describes a failed conversion of an event from one type into another.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("can not convert %s into %s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("can not convert %s into %s", e.From, e.To)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is makes every ConversionError match ErrConversion.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

func emptyEventData(target any, eventType string) error {
	return fmt.Errorf("%w to create %T from %s event", ErrEmptyEventData, target, eventType)
}

func missingEntity(entityType, action string) error {
	return fmt.Errorf("%w: %s entity is required for action %s", ErrMissingEntity, entityType, action)
}
