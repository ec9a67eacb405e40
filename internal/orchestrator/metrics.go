package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mobile_network_orchestrator_build_info",
		Help: "Build information of the placement orchestrator",
	},
		[]string{"version", "commit", "date"},
	)

	IterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mobile_network_orchestrator_iterations_total",
		Help: "Total number of placement iterations, by result",
	},
		[]string{"result"},
	)

	IterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mobile_network_orchestrator_iteration_duration_seconds",
		Help:    "Wall-clock duration of a placement iteration",
		Buckets: prometheus.DefBuckets,
	})

	ApplicationsMovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobile_network_orchestrator_applications_moved_total",
		Help: "Total number of application migrations committed",
	})

	MoveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobile_network_orchestrator_move_errors_total",
		Help: "Total number of failed application migration calls",
	})
)
