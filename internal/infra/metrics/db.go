package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(dbErrorsTotal)
}

var dbErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_db_errors_total",
		Help: "Storage errors by repository.",
	},
	[]string{"repo"},
)

func IncDBError(repo string) {
	dbErrorsTotal.WithLabelValues(repo).Inc()
}
