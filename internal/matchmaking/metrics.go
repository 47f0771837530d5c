package matchmaking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "domino_matchmaking_queued",
		Help: "Players waiting in the matchmaking queue.",
	})

	metricMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domino_matchmaking_matches_total",
		Help: "Games formed by matchmaking, by tier.",
	}, []string{"tier"})

	metricRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_matchmaking_requeued_total",
		Help: "Entries put back after the registry refused a match.",
	})
)
