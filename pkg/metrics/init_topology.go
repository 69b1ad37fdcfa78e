package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTopologyMetrics() {
	r.ReachabilityChecksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_topology_reachability_checks_total",
			Help: "Total number of reachability decisions, by outcome",
		},
		[]string{"outcome"},
	)

	r.TopologyReloadsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netsim_topology_reloads_total",
			Help: "Total number of topology configuration reloads",
		},
	)

	r.ExposedServices = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsim_topology_exposed_services",
			Help: "Number of currently exposed services",
		},
	)
}
