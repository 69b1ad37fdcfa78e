package topology

import (
	"errors"
)

// Errors for topology operations
var (
	ErrConfigMissing = errors.New("topology configuration file not found")
	ErrConfigInvalid = errors.New("invalid topology configuration")
	ErrInvalidInput  = errors.New("invalid input")
)

// Network represents a named logical broadcast domain, optionally grouped
// under a Purdue-model zone
type Network struct {
	Name          string            `json:"name"`
	Zone          string            `json:"zone,omitempty"`
	ZoneDesc      string            `json:"zone_description,omitempty"`
	SecurityLevel int               `json:"security_level,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ServiceKey identifies an exposed service by device and port
type ServiceKey struct {
	Device string
	Port   int
}

// Service represents an exposed service: a (device, port) pair advertised
// as speaking a given protocol
type Service struct {
	Device   string `json:"device"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

// Summary is an aggregate view of the loaded topology
type Summary struct {
	NetworkCount int            `json:"network_count"`
	DeviceCount  int            `json:"device_count"`
	ServiceCount int            `json:"service_count"`
	ByProtocol   map[string]int `json:"by_protocol"`
	ByNetwork    map[string]int `json:"by_network"`
}

// DeviceRegistry is the existence check consumed from the device simulation
// layer. Exposure proceeds with a warning when the device is not confirmed,
// to tolerate test and ad-hoc setups.
type DeviceRegistry interface {
	HasDevice(name string) bool
}
