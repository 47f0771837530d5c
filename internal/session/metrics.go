package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domino_session_ops_total",
		Help: "Registry write operations by op and result kind.",
	}, []string{"op", "result"})

	metricLiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "domino_session_live_games",
		Help: "Games resident in registry memory.",
	})

	metricRemoteEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_session_remote_evictions_total",
		Help: "Games evicted after another process changed them.",
	})

	metricReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_session_reaped_games_total",
		Help: "Finished games dropped from memory after their retention.",
	})

	metricRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_session_snapshot_rollbacks_total",
		Help: "Snapshots restored after an event could not be published.",
	})

	metricHistoryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_session_history_errors_total",
		Help: "Finished games that could not be written to history.",
	})
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = resultKind(err)
	}
	metricOps.WithLabelValues(op, result).Inc()
}
