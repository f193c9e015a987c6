package metrics

// TxRecorder buffers the event counts of a transaction until it commits, so rolled
// back writes are never reported. The zero value is ready to use.
type TxRecorder struct {
	pending []func(StoreMetrics)
}

// EventPersisted buffers a stored event.
func (r *TxRecorder) EventPersisted(backend, entityType, eventType string) {
	r.pending = append(r.pending, func(m StoreMetrics) {
		m.EventPersisted(backend, entityType, eventType)
	})
}

// EventsPurged buffers scrubbed events.
func (r *TxRecorder) EventsPurged(backend, entityType string, count int64) {
	r.pending = append(r.pending, func(m StoreMetrics) {
		m.EventsPurged(backend, entityType, count)
	})
}

// Flush reports the buffered counts to m and empties the buffer.
func (r *TxRecorder) Flush(m StoreMetrics) {
	for _, record := range r.pending {
		record(m)
	}
	r.pending = nil
}

// Discard drops the buffered counts.
func (r *TxRecorder) Discard() {
	r.pending = nil
}
