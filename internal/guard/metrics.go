package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hijackguard",
			Name:      "login_decisions_total",
			Help:      "Login evaluations by decision",
		},
		[]string{"decision"},
	)

	riskScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hijackguard",
			Name:      "risk_score",
			Help:      "Distribution of model risk scores for evaluated logins",
			Buckets:   prometheus.LinearBuckets(0.05, 0.05, 20),
		},
	)
)
