package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fogsly",
	Subsystem: "payment",
	Name:      "requests_resolved_total",
	Help:      "Payment requests resolved by admins, by outcome.",
}, []string{"status"})
