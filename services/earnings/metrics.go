package earnings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	creditedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fogsly",
		Subsystem: "earnings",
		Name:      "credited_fog_total",
		Help:      "FOG credited to earning buckets.",
	}, []string{"bucket"})

	withdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fogsly",
		Subsystem: "earnings",
		Name:      "withdrawals_total",
		Help:      "Withdrawal requests by final status.",
	}, []string{"status"})
)
