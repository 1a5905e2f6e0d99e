package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterNoPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { MustRegister(reg) })

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"ridgeline_events_ingested_total",
		"ridgeline_events_dropped_total",
		"ridgeline_alerts_created_total",
		"ridgeline_evaluations_total",
		"ridgeline_deliveries_total",
		"ridgeline_retries_total",
		"ridgeline_breaker_trips_total",
		"ridgeline_dlq_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestCounterIncrements(t *testing.T) {
	EventsIngestedTotal.Add(0)
	before := testutil.ToFloat64(EventsIngestedTotal)
	EventsIngestedTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EventsIngestedTotal))

	DeliveriesTotal.WithLabelValues("success").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(DeliveriesTotal.WithLabelValues("success")))

	RetriesTotal.WithLabelValues("http_error").Add(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(RetriesTotal.WithLabelValues("http_error")))

	EventsDroppedTotal.WithLabelValues("ts_parse_error").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(EventsDroppedTotal.WithLabelValues("ts_parse_error")))
}
