package connectivity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tourline_connectivity_offline",
		Help: "1 while the device is considered offline, 0 otherwise.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tourline_retry_queue_depth",
		Help: "Number of deferred operations waiting for connectivity.",
	})

	queueReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourline_retry_queue_replays_total",
		Help: "Deferred operations replayed after reconnecting, by outcome.",
	}, []string{"outcome"})
)

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
