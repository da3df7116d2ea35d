package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the tracking flow.
var (
	SamplesRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_samples_recorded_total",
			Help: "Total number of tracking samples written to the log",
		},
	)

	SamplesDedupedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_samples_deduped_total",
			Help: "Total number of re-applied samples dropped by the dedup index",
		},
	)

	SamplesThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_samples_throttled_total",
			Help: "Total number of position fixes observed but not persisted by the throttle gate",
		},
	)

	FeedEventsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_feed_events_published_total",
			Help: "Total number of sample events published to the change-feed",
		},
	)

	DeliveriesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliveries_created_total",
			Help: "Total number of delivery requests created",
		},
	)
)

// MustRegister registers all metrics on the given registry. Call once per
// process.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		SamplesRecordedTotal,
		SamplesDedupedTotal,
		SamplesThrottledTotal,
		FeedEventsPublishedTotal,
		DeliveriesCreatedTotal,
	)
}
