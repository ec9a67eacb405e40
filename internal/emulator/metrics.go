package emulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mobile_network_emulator_build_info",
		Help: "Build information of the mobile network emulator",
	},
		[]string{"version", "commit", "date"},
	)

	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mobile_network_emulator_ticks_total",
		Help: "Total number of simulation ticks, by result",
	},
		[]string{"result"},
	)

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mobile_network_emulator_tick_duration_seconds",
		Help:    "Wall-clock duration of a simulation tick",
		Buckets: prometheus.DefBuckets,
	})

	ConnectedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mobile_network_emulator_connected_users",
		Help: "Number of users currently holding a PDU session",
	})

	PublishedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobile_network_emulator_published_events_total",
		Help: "Total number of events delivered to exposure subscribers",
	})

	PublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobile_network_emulator_publish_errors_total",
		Help: "Total number of failed exposure publish rounds",
	})
)
