package gateway

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
)

// Classifier attributes a real peer address to a logical source network.
// The simulation has no real subnetting, so classification is a configured
// mapping with a least-privilege default.
type Classifier interface {
	Classify(peerAddr string) string
}

// StaticClassifier maps peer addresses to networks through an ordered
// CIDR-prefix table with a fallback default network
type StaticClassifier struct {
	mu         sync.RWMutex
	rules      []classifierRule
	defaultNet string
}

type classifierRule struct {
	prefix  netip.Prefix
	network string
}

// NewStaticClassifier creates a classifier that maps unmatched peers to
// defaultNetwork
func NewStaticClassifier(defaultNetwork string) *StaticClassifier {
	if defaultNetwork == "" {
		defaultNetwork = DefaultNetwork
	}
	return &StaticClassifier{defaultNet: defaultNetwork}
}

// AddRule maps a CIDR range to a network name. Rules are evaluated in
// insertion order, first match wins.
func (c *StaticClassifier) AddRule(cidr, network string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	if network == "" {
		return fmt.Errorf("network name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, classifierRule{prefix: prefix, network: network})
	return nil
}

// Classify resolves a peer address (host:port or bare host) to a network name
func (c *StaticClassifier) Classify(peerAddr string) string {
	host := peerAddr
	if h, _, err := net.SplitHostPort(peerAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return c.defaultNet
	}
	addr = addr.Unmap()

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rule := range c.rules {
		if rule.prefix.Contains(addr) {
			return rule.network
		}
	}
	return c.defaultNet
}

// DefaultNetworkName returns the classifier's fallback network
func (c *StaticClassifier) DefaultNetworkName() string {
	return c.defaultNet
}

// FixedClassifier maps every peer to a single network (useful for tests
// and single-zone scenarios)
type FixedClassifier string

// Classify returns the fixed network name
func (f FixedClassifier) Classify(peerAddr string) string {
	return string(f)
}
