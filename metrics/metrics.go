// Package metrics provides Prometheus instrumentation for the tunnel
// transport shim.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "udptun"

// Metrics groups the transport counters. All vectors are labelled by
// device; drop and error vectors carry a reason label as well.
type Metrics struct {
	// Ingress demultiplexer
	RxConsumed  *prometheus.CounterVec
	RxDelivered *prometheus.CounterVec
	RxDropped   *prometheus.CounterVec

	// Egress transmitter
	TxPackets *prometheus.CounterVec
	TxBytes   *prometheus.CounterVec
	TxErrors  *prometheus.CounterVec

	// Route cache
	RouteCacheHits   *prometheus.CounterVec
	RouteCacheMisses *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide metrics instance, registered on the
// default Prometheus registerer.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetricsWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetricsWithRegistry creates a Metrics instance registered on a custom
// registry, mainly for tests.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RxConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rx_consumed_total",
			Help:      "Inbound datagrams handed to the tunnel receive pipeline",
		}, []string{"device"}),
		RxDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rx_delivered_total",
			Help:      "Inbound datagrams passed through to the normal UDP consumer",
		}, []string{"device"}),
		RxDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rx_dropped_total",
			Help:      "Inbound datagrams dropped by the demultiplexer, by reason",
		}, []string{"device", "reason"}),

		TxPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_packets_total",
			Help:      "Outbound tunnel datagrams transmitted",
		}, []string{"device"}),
		TxBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_bytes_total",
			Help:      "Outbound tunnel payload bytes transmitted",
		}, []string{"device"}),
		TxErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_errors_total",
			Help:      "Outbound tunnel datagrams dropped, by reason",
		}, []string{"device", "reason"}),

		RouteCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_cache_hits_total",
			Help:      "Transmissions that reused a validated cached route",
		}, []string{"device", "family"}),
		RouteCacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_cache_misses_total",
			Help:      "Transmissions that required a fresh route lookup",
		}, []string{"device", "family"}),
	}
}
