package tournament

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "domino_tournaments_active",
		Help: "Tournaments in registration or in progress.",
	})

	metricMatchesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_tournament_matches_opened_total",
		Help: "Match games opened.",
	})

	metricOpenFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_tournament_match_open_failures_total",
		Help: "Match games that could not be opened.",
	})

	metricReopened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_tournament_matches_reopened_total",
		Help: "Matches replayed in a new game after everyone left.",
	})
)
