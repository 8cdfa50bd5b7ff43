package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fogsly",
	Subsystem: "wallet",
	Name:      "transfers_total",
	Help:      "Wallet to wallet transfers by final status.",
}, []string{"status"})
