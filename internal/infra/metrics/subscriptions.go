package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"wallet-billing/internal/domain/model"
)

func init() {
	register(subscriptionsTotal)
}

var subscriptionsTotal = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "billing_subscriptions_total",
		Help: "Current number of subscriptions by status.",
	},
	[]string{"status"}, // 'unpaid', 'paid', 'expired', 'cancelled'
)

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusUnpaid,
		model.SubscriptionStatusPaid,
		model.SubscriptionStatusExpired,
		model.SubscriptionStatusCancelled,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
