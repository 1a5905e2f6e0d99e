package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridgeline_events_ingested_total",
			Help: "Total number of telemetry events persisted.",
		},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_events_dropped_total",
			Help: "Total number of telemetry events dropped by reason.",
		},
		[]string{"reason"}, // e.g. ts_parse_error
	)

	AlertsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridgeline_alerts_created_total",
			Help: "Total number of alerts created by the evaluation engine.",
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_evaluations_total",
			Help: "Total number of device evaluation runs by outcome.",
		},
		[]string{"outcome"}, // alert_created, no_match, error
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_deliveries_total",
			Help: "Total number of webhook delivery attempts by status.",
		},
		[]string{"status"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_retries_total",
			Help: "Total number of delivery retries by reason.",
		},
		[]string{"reason"}, // e.g. retryable_status_503, http_error:<kind>, circuit_open:<url>
	)

	BreakerTripsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridgeline_breaker_trips_total",
			Help: "Total number of times a webhook URL's circuit breaker tripped open.",
		},
	)

	DLQTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridgeline_dlq_total",
			Help: "Total number of deliveries moved to the dead-letter topic.",
		},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EventsIngestedTotal,
		EventsDroppedTotal,
		AlertsCreatedTotal,
		EvaluationsTotal,
		DeliveriesTotal,
		RetriesTotal,
		BreakerTripsTotal,
		DLQTotal,
	)
}
