package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restart_controller_signals_total",
			Help: "Workload-changed signals emitted by source stream.",
		},
		[]string{"source"},
	)
	reconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restart_controller_watch_reconnects_total",
			Help: "Watch stream reconnects by source stream.",
		},
		[]string{"source"},
	)
)
