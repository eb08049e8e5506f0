package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	require.NotNil(t, m)

	m.RxConsumed.WithLabelValues("tun0").Inc()
	m.RxDropped.WithLabelValues("tun0", "malformed").Add(2)
	m.TxPackets.WithLabelValues("tun0").Inc()
	m.RouteCacheHits.WithLabelValues("tun0", "ipv4").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RxConsumed.WithLabelValues("tun0")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RxDropped.WithLabelValues("tun0", "malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TxPackets.WithLabelValues("tun0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RouteCacheHits.WithLabelValues("tun0", "ipv4")))
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
