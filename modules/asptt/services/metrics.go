package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
)

var (
	aspttRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asptt",
		Name:      "rows_total",
		Help:      "Rows reconciled by committed imports, by row status.",
	}, []string{"status"})

	aspttReviewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asptt",
		Name:      "review_transitions_total",
		Help:      "Review actions applied to documents, by action and result.",
	}, []string{"action", "result"})

	aspttAliasSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asptt",
		Name:      "alias_saves_total",
		Help:      "Club alias saves, by result (created/existing).",
	}, []string{"result"})

	aspttCommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "asptt",
		Name:      "commit_duration_seconds",
		Help:      "Wall time of full-file commits.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func recordRows(c reconcile.Counters) {
	for status, n := range c.ByStatus {
		if n > 0 {
			aspttRows.WithLabelValues(string(status)).Add(float64(n))
		}
	}
}

func recordReviewTransition(action string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	aspttReviewTransitions.WithLabelValues(action, result).Inc()
}

func recordAliasSave(created bool) {
	result := "existing"
	if created {
		result = "created"
	}
	aspttAliasSaves.WithLabelValues(result).Inc()
}
