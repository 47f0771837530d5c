package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "domino_bus_dropped_events_total",
	Help: "Events a full in-process subscriber did not receive, by topic.",
}, []string{"topic"})
