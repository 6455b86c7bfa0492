package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hijackguard",
			Name:      "model_updates_total",
			Help:      "Federated model updates by outcome",
		},
		[]string{"outcome"}, // applied, rejected, not_finite, persist_failed
	)

	modelBias = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hijackguard",
			Name:      "model_bias",
			Help:      "Current bias term of the global risk model",
		},
	)
)
