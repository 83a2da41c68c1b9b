package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	other := New(reg)
	require.NoError(t, other.Register(), "already registered collectors are not an error")
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NoError(t, m.Register())

	m.BatchReceived("0", 3)
	m.BatchReceived("1", 1)
	m.EventProcessed("0", 2*time.Millisecond)
	m.EventProcessed("0", 3*time.Millisecond)
	m.EventFailed("0")
	m.UpstreamError("1")
	m.Broadcast(4, 1, 2)
	m.Broadcast(1, 0, 0)
	m.SetSubscribers(5)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsReceived.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsReceived.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsProcessed.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsFailed.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamErrors.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.broadcasts))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.deliveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.subscribers))

	expected := `
# HELP streamrelay_subscribers Currently registered subscribers
# TYPE streamrelay_subscribers gauge
streamrelay_subscribers 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "streamrelay_subscribers"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		require.NoError(t, m.Register())
		m.BatchReceived("0", 1)
		m.EventProcessed("0", time.Millisecond)
		m.EventFailed("0")
		m.UpstreamError("0")
		m.Broadcast(1, 1, 1)
		m.SetSubscribers(1)
	})
}
