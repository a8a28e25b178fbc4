package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(ordersTotal)
}

var ordersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_orders_total",
		Help: "Order lifecycle events by outcome.",
	},
	// created|reused|paid|pay_failed|cancelled|expired|refunded|refund_failed
	[]string{"event"},
)

func IncOrder(event string) {
	ordersTotal.WithLabelValues(event).Inc()
}
