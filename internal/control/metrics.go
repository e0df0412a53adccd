package control

import "github.com/prometheus/client_golang/prometheus"

var (
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hubd",
			Subsystem: "control",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one control-loop tick",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	missedActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "control",
			Name:      "missed_actions_total",
			Help:      "Ticks where the active provider produced no action, by provider",
		},
		[]string{"provider"},
	)

	failsafeTripsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "control",
			Name:      "failsafe_trips_total",
			Help:      "Times the consecutive-miss threshold was reached",
		},
	)
)

func init() {
	prometheus.MustRegister(tickDuration, missedActionsTotal, failsafeTripsTotal)
}
