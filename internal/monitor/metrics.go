package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "slurm_tui",
		Subsystem: "monitor",
		Name:      "refresh_total",
		Help:      "Completed refresh cycles.",
	})
	refreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "slurm_tui",
		Subsystem: "monitor",
		Name:      "refresh_failures_total",
		Help:      "Refresh cycles that kept the previous snapshot and marked it stale.",
	})
	parseAnomalies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "slurm_tui",
		Subsystem: "monitor",
		Name:      "parse_anomalies_total",
		Help:      "Scheduler output rows skipped during parsing.",
	})
)

func init() {
	prometheus.MustRegister(refreshTotal, refreshFailures, parseAnomalies)
}
