package topology

import (
	"fmt"
	"sync"

	"github.com/icsrange/netsim/pkg/logging"
	"github.com/icsrange/netsim/pkg/seclog"
	"github.com/icsrange/netsim/pkg/validation"
)

// Store holds the network table, the device-network membership relation
// and the exposed-service map. A single lock guards all three so every
// reachability decision observes a consistent snapshot.
type Store struct {
	mu          sync.RWMutex
	networks    map[string]*Network
	memberships map[string]map[string]struct{} // device -> set of network names
	services    map[ServiceKey]string          // (device, port) -> protocol

	logger   logging.Logger
	security seclog.SecurityLogger
	devices  DeviceRegistry
}

// StoreConfig wires the store's collaborators. Nil fields get no-op defaults.
type StoreConfig struct {
	Logger   logging.Logger
	Security seclog.SecurityLogger
	Devices  DeviceRegistry
}

// NewStore creates an empty topology store
func NewStore(cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Security == nil {
		cfg.Security = seclog.NewRecorder(0)
	}
	return &Store{
		networks:    make(map[string]*Network),
		memberships: make(map[string]map[string]struct{}),
		services:    make(map[ServiceKey]string),
		logger:      cfg.Logger,
		security:    cfg.Security,
		devices:     cfg.Devices,
	}
}

// ExposeService records that a device is listening on a port speaking a
// protocol. Re-exposing the same (device, port) overwrites the protocol.
func (s *Store) ExposeService(device, protocol string, port int) error {
	req := &validation.ExposeRequest{Device: device, Protocol: protocol, Port: port}
	if err := validation.ValidateExposeRequest(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.mu.Lock()
	s.services[ServiceKey{Device: device, Port: port}] = protocol
	orphaned := len(s.memberships[device]) == 0
	s.mu.Unlock()

	if orphaned {
		s.logger.Warn("exposed service on device with no network membership, service is unreachable",
			logging.Device(device), logging.Protocol(protocol), logging.Port(port))
	}
	if s.devices != nil && !s.devices.HasDevice(device) {
		s.logger.Warn("exposed service on device unknown to the device registry",
			logging.Device(device), logging.Protocol(protocol), logging.Port(port))
	}
	s.logger.Debug("service exposed",
		logging.Device(device), logging.Protocol(protocol), logging.Port(port))
	return nil
}

// UnexposeService removes an exposed service and reports whether it existed
func (s *Store) UnexposeService(device string, port int) bool {
	key := ServiceKey{Device: device, Port: port}

	s.mu.Lock()
	_, existed := s.services[key]
	delete(s.services, key)
	s.mu.Unlock()

	if existed {
		s.logger.Debug("service unexposed", logging.Device(device), logging.Port(port))
	}
	return existed
}

// DeviceNetworks returns the names of the networks a device belongs to
func (s *Store) DeviceNetworks(device string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	networks := make([]string, 0, len(s.memberships[device]))
	for name := range s.memberships[device] {
		networks = append(networks, name)
	}
	return networks
}

// NetworkDevices returns the names of the devices that are members of a network
func (s *Store) NetworkDevices(network string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]string, 0)
	for device, nets := range s.memberships {
		if _, ok := nets[network]; ok {
			devices = append(devices, device)
		}
	}
	return devices
}

// Network returns a copy of a network's definition
func (s *Store) Network(name string) (Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nw, ok := s.networks[name]
	if !ok {
		return Network{}, false
	}
	out := *nw
	if nw.Metadata != nil {
		out.Metadata = make(map[string]string, len(nw.Metadata))
		for k, v := range nw.Metadata {
			out.Metadata[k] = v
		}
	}
	return out, true
}

// Networks returns copies of all network definitions
func (s *Store) Networks() []Network {
	s.mu.RLock()
	defer s.mu.RUnlock()

	networks := make([]Network, 0, len(s.networks))
	for name := range s.networks {
		nw := *s.networks[name]
		if s.networks[name].Metadata != nil {
			nw.Metadata = make(map[string]string, len(s.networks[name].Metadata))
			for k, v := range s.networks[name].Metadata {
				nw.Metadata[k] = v
			}
		}
		networks = append(networks, nw)
	}
	return networks
}

// AllServices returns a copy of the exposed-service map
func (s *Store) AllServices() map[ServiceKey]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make(map[ServiceKey]string, len(s.services))
	for key, protocol := range s.services {
		services[key] = protocol
	}
	return services
}

// Summary returns aggregate counts over the loaded topology
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{
		NetworkCount: len(s.networks),
		DeviceCount:  len(s.memberships),
		ServiceCount: len(s.services),
		ByProtocol:   make(map[string]int),
		ByNetwork:    make(map[string]int),
	}
	for _, protocol := range s.services {
		summary.ByProtocol[protocol]++
	}
	for _, nets := range s.memberships {
		for name := range nets {
			summary.ByNetwork[name]++
		}
	}
	return summary
}

// Reset clears all networks, memberships and services
func (s *Store) Reset() {
	s.mu.Lock()
	s.networks = make(map[string]*Network)
	s.memberships = make(map[string]map[string]struct{})
	s.services = make(map[ServiceKey]string)
	s.mu.Unlock()

	s.logger.Info("topology store reset")
}
