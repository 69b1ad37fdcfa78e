package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/icsrange/netsim/pkg/logging"
)

// topologyDoc is the on-disk YAML layout: zones with nested networks,
// an optional flat network list, and a connections table mapping network
// names to device entries.
type topologyDoc struct {
	Zones       []zoneDoc                `yaml:"zones"`
	Networks    []networkDoc             `yaml:"networks"`
	Connections map[string][]deviceEntry `yaml:"connections"`
}

type zoneDoc struct {
	Name          string       `yaml:"name"`
	Description   string       `yaml:"description"`
	SecurityLevel int          `yaml:"security_level"`
	Networks      []networkDoc `yaml:"networks"`
}

type networkDoc struct {
	Name     string            `yaml:"name"`
	Subnet   string            `yaml:"subnet"`
	Metadata map[string]string `yaml:"metadata"`
}

// deviceEntry is either a bare device name string or an object with
// device and optional ip fields
type deviceEntry struct {
	Device string
	IP     string
}

func (d *deviceEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&d.Device)
	case yaml.MappingNode:
		var obj struct {
			Device string `yaml:"device"`
			IP     string `yaml:"ip"`
		}
		if err := node.Decode(&obj); err != nil {
			return err
		}
		d.Device = obj.Device
		d.IP = obj.IP
		return nil
	default:
		return fmt.Errorf("device entry must be a string or a mapping (line %d)", node.Line)
	}
}

// LoadFile loads the topology from a YAML file. A missing file is a
// distinct fatal condition from a malformed one.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}
	return s.Load(data)
}

// Load parses a topology document and atomically replaces the network
// table and device-network membership relation. Exposed services are
// preserved; only new reachability decisions observe the new topology.
func (s *Store) Load(data []byte) error {
	var doc topologyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	networks := make(map[string]*Network)

	// Zoned networks first, then the flat list merged on top
	for _, zone := range doc.Zones {
		for _, nw := range zone.Networks {
			if nw.Name == "" {
				return fmt.Errorf("%w: zone %q contains a network without a name", ErrConfigInvalid, zone.Name)
			}
			networks[nw.Name] = &Network{
				Name:          nw.Name,
				Zone:          zone.Name,
				ZoneDesc:      zone.Description,
				SecurityLevel: zone.SecurityLevel,
				Metadata:      networkMetadata(nw),
			}
		}
	}
	for _, nw := range doc.Networks {
		if nw.Name == "" {
			return fmt.Errorf("%w: network without a name", ErrConfigInvalid)
		}
		networks[nw.Name] = &Network{
			Name:     nw.Name,
			Metadata: networkMetadata(nw),
		}
	}

	memberships := make(map[string]map[string]struct{})
	var unknownNetworks []string
	for networkName, devices := range doc.Connections {
		if _, ok := networks[networkName]; !ok {
			unknownNetworks = append(unknownNetworks, networkName)
		}
		for _, entry := range devices {
			if entry.Device == "" {
				return fmt.Errorf("%w: connections for network %q contain a device without a name", ErrConfigInvalid, networkName)
			}
			if memberships[entry.Device] == nil {
				memberships[entry.Device] = make(map[string]struct{})
			}
			memberships[entry.Device][networkName] = struct{}{}
		}
	}

	s.mu.Lock()
	s.networks = networks
	s.memberships = memberships
	s.mu.Unlock()

	// Log outside the lock
	if len(networks) == 0 {
		s.logger.Warn("topology loaded with no networks defined")
	}
	for _, name := range unknownNetworks {
		s.logger.Warn("connections table references unknown network",
			logging.Network(name))
	}
	s.logger.Info("topology loaded",
		logging.Int("networks", len(networks)),
		logging.Int("devices", len(memberships)))

	return nil
}

func networkMetadata(nw networkDoc) map[string]string {
	meta := make(map[string]string, len(nw.Metadata)+1)
	for k, v := range nw.Metadata {
		meta[k] = v
	}
	if nw.Subnet != "" {
		meta["subnet"] = nw.Subnet
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
