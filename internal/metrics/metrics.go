package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the auction engine.
var (
	BidsAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_bids_accepted_total",
			Help: "Total number of bids accepted",
		},
	)

	BidsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_rejected_total",
			Help: "Total number of bids rejected, by reason",
		},
		[]string{"reason"},
	)

	SweepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_sweep_transitions_total",
			Help: "Status transitions applied by the status sweep",
		},
		[]string{"transition"},
	)

	FulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_fulfillments_total",
			Help: "Fulfillment pipeline runs, by result",
		},
		[]string{"result"},
	)

	FulfillmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auction_fulfillment_duration_seconds",
			Help:    "Duration of a single auction's fulfillment run",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_notifications_total",
			Help: "Notification jobs dispatched, by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	RetentionDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_retention_deleted_total",
			Help: "Fulfilled auctions removed by the retention cleanup",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(BidsAcceptedTotal)
	prometheus.MustRegister(BidsRejectedTotal)
	prometheus.MustRegister(SweepTransitionsTotal)
	prometheus.MustRegister(FulfillmentsTotal)
	prometheus.MustRegister(FulfillmentDuration)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(RetentionDeletedTotal)
}
