package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0m3kk/eventsauce/metrics"
)

type countingMetrics struct {
	persisted []string
	purged    int64
}

func (c *countingMetrics) EventPersisted(_, _, eventType string) {
	c.persisted = append(c.persisted, eventType)
}
func (c *countingMetrics) EventsPurged(_, _ string, count int64) { c.purged += count }
func (c *countingMetrics) TxCommitted(string)                    {}
func (c *countingMetrics) TxRolledBack(string)                   {}
func (c *countingMetrics) CommitDuration(string) metrics.Timer   { return metrics.Nop().CommitDuration("") }

func TestTxRecorder_FlushReportsInOrder(t *testing.T) {
	// GIVEN
	var r metrics.TxRecorder
	sink := &countingMetrics{}
	r.EventPersisted("redis", "users", "UserCreated")
	r.EventsPurged("redis", "users", 3)
	r.EventPersisted("redis", "users", "UserPurged")

	// WHEN
	r.Flush(sink)

	// THEN
	assert.Equal(t, []string{"UserCreated", "UserPurged"}, sink.persisted)
	assert.Equal(t, int64(3), sink.purged)

	r.Flush(sink)
	assert.Len(t, sink.persisted, 2, "flushed counts are reported once")
}

func TestTxRecorder_DiscardDropsCounts(t *testing.T) {
	var r metrics.TxRecorder
	sink := &countingMetrics{}
	r.EventPersisted("postgres", "users", "UserCreated")

	r.Discard()
	r.Flush(sink)

	assert.Empty(t, sink.persisted)
}
