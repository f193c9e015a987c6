package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)
	require.NotNil(t, m)

	m.EventPersisted("memory", "users", "UserCreated")
	m.EventPersisted("memory", "users", "UserCreated")
	m.EventPersisted("memory", "users", "UserUpdated")
	m.EventsPurged("memory", "users", 3)
	m.TxCommitted("memory")
	m.TxRolledBack("memory")

	timer := m.CommitDuration("memory")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	sm := m.(*storeMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.eventsPersisted.WithLabelValues("memory", "users", "UserCreated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.eventsPersisted.WithLabelValues("memory", "users", "UserUpdated")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sm.eventsPurged.WithLabelValues("memory", "users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.txCommitted.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.txRolledBack.WithLabelValues("memory")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNewStoreMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewStoreMetrics(reg)

	assert.Panics(t, func() { NewStoreMetrics(reg) })
}
