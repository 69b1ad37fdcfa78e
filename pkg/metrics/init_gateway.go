package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGatewayMetrics() {
	r.ConnectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_gateway_connections_total",
			Help: "Total number of external connections accepted, by device and result",
		},
		[]string{"device", "result"},
	)

	r.ConnectionsDenied = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_gateway_connections_denied_total",
			Help: "Total number of denied connections, by device and enforcement stage",
		},
		[]string{"device", "stage"},
	)

	r.ActiveSessions = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsim_gateway_active_sessions",
			Help: "Number of currently proxied sessions",
		},
	)

	r.SessionsKilledTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netsim_gateway_sessions_killed_total",
			Help: "Total number of sessions terminated by operator kill commands",
		},
	)

	r.BytesRelayedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_gateway_bytes_relayed_total",
			Help: "Total bytes relayed through the gateway, by direction",
		},
		[]string{"direction"},
	)

	r.ListenersRunning = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsim_gateway_listeners_running",
			Help: "Number of gateway listeners currently accepting connections",
		},
	)

	r.BindFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netsim_gateway_bind_failures_total",
			Help: "Total number of listener bind failures",
		},
	)
}
