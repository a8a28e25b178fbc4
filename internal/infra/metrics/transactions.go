package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		transactionsTotal,
		insufficientFundsTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Money movements attempted through the transaction engine.",
		},
		[]string{"type", "result"}, // type: system|transfer|order, result: ok|failed
	)

	insufficientFundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_insufficient_funds_total",
			Help: "Debits rejected by the no-overdraft guard.",
		},
	)
)

func IncTransaction(typ, result string) {
	transactionsTotal.WithLabelValues(typ, result).Inc()
}

func IncInsufficientFunds() {
	insufficientFundsTotal.Inc()
}
