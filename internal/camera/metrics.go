package camera

import "github.com/prometheus/client_golang/prometheus"

var (
	framesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "camera",
			Name:      "frames_published_total",
			Help:      "Encoded frames delivered to subscribers, by source",
		},
		[]string{"camera"},
	)

	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "camera",
			Name:      "frames_dropped_total",
			Help:      "Encoded frames lost to full subscriber buffers, by source",
		},
		[]string{"camera"},
	)

	framesReplaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "camera",
			Name:      "frames_replaced_total",
			Help:      "Raw frames superseded before encoding, by source",
		},
		[]string{"camera"},
	)
)

func init() {
	prometheus.MustRegister(framesPublished, framesDropped, framesReplaced)
}
