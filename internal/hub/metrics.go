package hub

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "hub",
			Name:      "commands_total",
			Help:      "Total commands processed, by verb and outcome",
		},
		[]string{"command", "status"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "hub",
			Name:      "mode_transitions_total",
			Help:      "Total published mode transitions, by target mode",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, transitionsTotal)
}
