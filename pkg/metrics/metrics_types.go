package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all prometheus metrics for the virtual network layer
type Registry struct {
	registry *prometheus.Registry

	// Gateway metrics
	ConnectionsTotal    *prometheus.CounterVec
	ConnectionsDenied   *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	SessionsKilledTotal prometheus.Counter
	BytesRelayedTotal   *prometheus.CounterVec
	ListenersRunning    prometheus.Gauge
	BindFailuresTotal   prometheus.Counter

	// Topology metrics
	ReachabilityChecksTotal *prometheus.CounterVec
	TopologyReloadsTotal    prometheus.Counter
	ExposedServices         prometheus.Gauge

	// Security event metrics
	SecurityEventsTotal *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.registry.MustRegister(collectors.NewGoCollector())
	r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r.initGatewayMetrics()
	r.initTopologyMetrics()
	r.initSecurityMetrics()

	return r
}

// Handler returns an HTTP handler for the /metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying prometheus gatherer (used in tests)
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
