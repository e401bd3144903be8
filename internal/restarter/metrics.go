package restarter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var restartsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "restart_controller_restarts_total",
		Help: "Restart attempts by outcome (restarted, skipped, failed).",
	},
	[]string{"outcome"},
)
