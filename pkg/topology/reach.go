package topology

import (
	"github.com/icsrange/netsim/pkg/logging"
	"github.com/icsrange/netsim/pkg/seclog"
)

// CanReach decides whether a source network may reach a destination
// device's service. The enforcement chain is: service must exist,
// protocol names must match exactly, the destination must belong to at
// least one network, and the source network must be one of them.
// Cross-network denials emit a security event for SIEM consumption.
func (s *Store) CanReach(sourceNetwork, destDevice, protocol string, port int) bool {
	s.mu.RLock()
	exposedProtocol, serviceExists := s.services[ServiceKey{Device: destDevice, Port: port}]
	destNetworks := make([]string, 0, len(s.memberships[destDevice]))
	for name := range s.memberships[destDevice] {
		destNetworks = append(destNetworks, name)
	}
	s.mu.RUnlock()

	// Decision and logging happen outside the lock

	if !serviceExists {
		s.logger.Debug("reachability denied, no service exposed",
			logging.Network(sourceNetwork), logging.Device(destDevice),
			logging.Protocol(protocol), logging.Port(port))
		return false
	}

	if exposedProtocol != protocol {
		s.logger.Debug("reachability denied, protocol mismatch",
			logging.Network(sourceNetwork), logging.Device(destDevice),
			logging.Protocol(protocol), logging.String("exposed_protocol", exposedProtocol),
			logging.Port(port))
		return false
	}

	if len(destNetworks) == 0 {
		s.logger.Warn("reachability denied, destination device has no network membership",
			logging.Network(sourceNetwork), logging.Device(destDevice),
			logging.Protocol(protocol), logging.Port(port))
		return false
	}

	for _, name := range destNetworks {
		if name == sourceNetwork {
			return true
		}
	}

	s.security.Log(&seclog.Event{
		Severity:      seclog.SeverityWarning,
		Type:          seclog.EventReachabilityDenied,
		Message:       "network reachability denied",
		SourceNetwork: sourceNetwork,
		DestNetworks:  destNetworks,
		Device:        destDevice,
		Protocol:      protocol,
		Port:          port,
	})
	return false
}

// CanReachFromDevice resolves the source device's network memberships and
// returns true if any of them can reach the destination. Multi-homed
// devices get the union of their networks' reach, which models lateral
// movement through dual-homed hosts.
func (s *Store) CanReachFromDevice(sourceDevice, destDevice, protocol string, port int) bool {
	s.mu.RLock()
	sourceNetworks := make([]string, 0, len(s.memberships[sourceDevice]))
	for name := range s.memberships[sourceDevice] {
		sourceNetworks = append(sourceNetworks, name)
	}
	s.mu.RUnlock()

	if len(sourceNetworks) == 0 {
		s.logger.Debug("reachability denied, source device has no network membership",
			logging.Device(sourceDevice))
		return false
	}

	for _, network := range sourceNetworks {
		if s.CanReach(network, destDevice, protocol, port) {
			return true
		}
	}
	return false
}
