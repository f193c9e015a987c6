// Package metrics provides store instrumentation interfaces that allow pluggable
// backends (Prometheus, StatsD, etc.) without coupling the storage adapters to any
// specific implementation.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	ObserveDuration()
}

// StoreMetrics is implemented by metric sinks for storage adapters.
// Implementations must be safe for concurrent use.
type StoreMetrics interface {
	// EventPersisted counts a stored event.
	EventPersisted(backend, entityType, eventType string)
	// EventsPurged counts events whose data was scrubbed by a purge.
	EventsPurged(backend, entityType string, count int64)
	// TxCommitted counts committed transactions.
	TxCommitted(backend string)
	// TxRolledBack counts rolled back transactions.
	TxRolledBack(backend string)
	// CommitDuration starts a timer for a commit.
	CommitDuration(backend string) Timer
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

type nopStoreMetrics struct{}

func (nopStoreMetrics) EventPersisted(string, string, string) {}
func (nopStoreMetrics) EventsPurged(string, string, int64)    {}
func (nopStoreMetrics) TxCommitted(string)                    {}
func (nopStoreMetrics) TxRolledBack(string)                   {}
func (nopStoreMetrics) CommitDuration(string) Timer           { return nopTimer{} }

// Nop returns a StoreMetrics that records nothing.
func Nop() StoreMetrics { return nopStoreMetrics{} }
