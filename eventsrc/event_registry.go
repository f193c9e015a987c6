package eventsrc

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// VariantDecoder decodes the stored payload of one enum variant into the enum type.
type VariantDecoder[E EnumEventData] func(data json.RawMessage) (E, error)

// VariantRegistry maps event type tags to the variants of an enum payload E.
// Decoding is driven by the tag only, so variants sharing a JSON shape never collide.
type VariantRegistry[E EnumEventData] struct {
	mu       sync.RWMutex
	decoders map[string]VariantDecoder[E]
}

// NewVariantRegistry creates an empty registry for the enum payload E.
func NewVariantRegistry[E EnumEventData]() *VariantRegistry[E] {
	return &VariantRegistry[E]{decoders: make(map[string]VariantDecoder[E])}
}

// RegisterVariant associates the event type of V with a function wrapping V into the enum E.
// It should be called during application initialization (e.g. when declaring a package var).
// This function will panic if the event type is registered more than once.
func RegisterVariant[V EventData, E EnumEventData](r *VariantRegistry[E], wrap func(V) E) {
	var zero V
	eventType := zero.EventType()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.decoders[eventType]; ok {
		panic(fmt.Sprintf("event type '%s' is already registered", eventType))
	}
	r.decoders[eventType] = func(data json.RawMessage) (E, error) {
		var v V
		if err := json.Unmarshal(data, &v); err != nil {
			var e E
			return e, err
		}
		return wrap(v), nil
	}
}

// Decode builds the enum value for the given event type from its stored payload.
// It returns ErrUnknownEventType if the event type has not been registered.
func (r *VariantRegistry[E]) Decode(eventType string, data json.RawMessage) (E, error) {
	r.mu.RLock()
	decode, ok := r.decoders[eventType]
	r.mu.RUnlock()

	if !ok {
		var e E
		return e, fmt.Errorf("%w: '%s' is not registered for %T", ErrUnknownEventType, eventType, e)
	}
	return decode(data)
}

// EventTypes returns the registered event types in lexical order.
func (r *VariantRegistry[E]) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
