package ads

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var watchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fogsly",
	Subsystem: "ads",
	Name:      "completions_total",
	Help:      "Ad completions, split by whether the daily cap clipped the reward.",
}, []string{"reward"})
