package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		renewalsTotal,
		subscriptionsExpiredTotal,
		membershipRefsClearedTotal,
		renewalTickSeconds,
	)
}

var (
	renewalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_renewals_total",
			Help: "Renewal attempts by the scheduler, by outcome.",
		},
		// renewed|insufficient_funds|pending_manual|cancelled|error
		[]string{"result"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_subscriptions_expired_total",
			Help: "Subscriptions bulk-expired by the renewal worker's first phase.",
		},
	)

	membershipRefsClearedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_membership_refs_cleared_total",
			Help: "Stale current-subscription pointers cleared by the hygiene sweep.",
		},
	)

	renewalTickSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_renewal_tick_seconds",
			Help:    "Wall time of one full renewal worker tick.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func IncRenewal(result string) {
	renewalsTotal.WithLabelValues(result).Inc()
}

func AddSubscriptionsExpired(n int64) {
	subscriptionsExpiredTotal.Add(float64(n))
}

func AddMembershipRefsCleared(n int64) {
	membershipRefsClearedTotal.Add(float64(n))
}

func ObserveRenewalTick(d time.Duration) {
	renewalTickSeconds.Observe(d.Seconds())
}
