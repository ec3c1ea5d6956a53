// Package metrics exposes Prometheus metrics for the relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "weather_relay"

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Scheduled relay cycles by cadence kind and outcome.",
	}, []string{"kind", "status"})

	lastSuccessUnix = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful cycle per cadence kind.",
	}, []string{"kind"})

	publishedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "published_bytes_total",
		Help:      "Bytes published to the broker per topic.",
	}, []string{"topic"})

	publishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "published_messages_total",
		Help:      "Messages published to the broker per topic.",
	}, []string{"topic"})
)

func CycleSucceeded(kind string) {
	cyclesTotal.WithLabelValues(kind, "success").Inc()
	lastSuccessUnix.WithLabelValues(kind).Set(float64(time.Now().Unix()))
}

func CycleFailed(kind string) {
	cyclesTotal.WithLabelValues(kind, "failure").Inc()
}

func Published(topic string, bytes int) {
	publishedMessages.WithLabelValues(topic).Inc()
	publishedBytes.WithLabelValues(topic).Add(float64(bytes))
}
