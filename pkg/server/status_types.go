package server

import (
	"time"

	"github.com/icsrange/netsim/pkg/gateway"
	"github.com/icsrange/netsim/pkg/topology"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse reports process liveness
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// SummaryResponse aggregates the operational state of the virtual network
type SummaryResponse struct {
	Status         string                 `json:"status"`
	Version        string                 `json:"version"`
	Uptime         string                 `json:"uptime"`
	Topology       topology.Summary       `json:"topology"`
	Gateway        gateway.ManagerSummary `json:"gateway"`
	SecurityEvents int64                  `json:"security_events"`
}

// TopologyResponse is the full network and service view
type TopologyResponse struct {
	Networks []NetworkView `json:"networks"`
	Services []ServiceView `json:"services"`
}

// NetworkView is one network with its connected devices
type NetworkView struct {
	Name          string   `json:"name"`
	Zone          string   `json:"zone,omitempty"`
	SecurityLevel int      `json:"security_level,omitempty"`
	Devices       []string `json:"devices"`
}

// ServiceView is one exposed service
type ServiceView struct {
	Device   string `json:"device"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

// KillResponse reports the outcome of a session kill request
type KillResponse struct {
	SessionID string `json:"session_id"`
	Killed    bool   `json:"killed"`
}
