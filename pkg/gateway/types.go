package gateway

import (
	"errors"
	"time"
)

// DefaultPortOffset is the documented offset between a gateway's public
// port and the loopback port its protocol server binds. It is a contract
// between the gateway and every protocol server and must stay injectable.
const DefaultPortOffset = 30000

// DefaultNetwork is where unclassified peers land. It should be a network
// with minimal or no reachability, never a trusted zone.
const DefaultNetwork = "internet"

// Errors for gateway operations
var (
	ErrAlreadyStarted = errors.New("listener already started")
	ErrNotRunning     = errors.New("listener not running")
	ErrBindFailed     = errors.New("failed to bind listener port")
)

// State is the lifecycle state of a gateway listener
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the string representation of a listener state
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Firewall is the connection-level rule check consumed from the firewall
// device simulation
type Firewall interface {
	CheckConnection(sourceNetwork, sourceAddress, destDevice, protocol string, port int) bool
}

// Intrusion is the IDS/IPS blacklist check consumed from the intrusion
// prevention device simulation
type Intrusion interface {
	IsBlocked(sourceAddress string) bool
}

// Reachability is the policy decision surface of the topology store
type Reachability interface {
	CanReach(sourceNetwork, destDevice, protocol string, port int) bool
}

// Tap observes relayed session traffic, e.g. for capture and replay.
// Implementations must not retain the data slice past the call.
type Tap interface {
	Capture(sessionID, direction string, data []byte)
}

// Config holds gateway tuning knobs
type Config struct {
	// PortOffset maps external ports to loopback protocol-server ports
	PortOffset int
	// RejectOnDeny sends an RST instead of silently dropping denied connections
	RejectOnDeny bool
	// DialTimeout bounds the loopback dial to the protocol server
	DialTimeout time.Duration
	// StopGrace bounds how long Stop waits for splicing tasks to finish
	StopGrace time.Duration
}

// DefaultConfig returns the default gateway configuration
func DefaultConfig() Config {
	return Config{
		PortOffset:  DefaultPortOffset,
		DialTimeout: 3 * time.Second,
		StopGrace:   2 * time.Second,
	}
}

// SessionInfo describes one live proxied session
type SessionInfo struct {
	ID            string    `json:"id"`
	Peer          string    `json:"peer"`
	SourceNetwork string    `json:"source_network"`
	Device        string    `json:"device"`
	Protocol      string    `json:"protocol"`
	Port          int       `json:"port"`
	StartedAt     time.Time `json:"started_at"`
}

// ListenerSummary is the operational view of one listener
type ListenerSummary struct {
	Device       string        `json:"device"`
	Network      string        `json:"network"`
	Port         int           `json:"port"`
	InternalPort int           `json:"internal_port"`
	Protocol     string        `json:"protocol"`
	State        string        `json:"state"`
	Total        int64         `json:"connections_total"`
	Denied       int64         `json:"connections_denied"`
	Active       int64         `json:"sessions_active"`
	Sessions     []SessionInfo `json:"sessions,omitempty"`
}

// ManagerSummary is the aggregate operational view for dashboards
type ManagerSummary struct {
	ListenerCount int               `json:"listener_count"`
	Running       int               `json:"running"`
	Total         int64             `json:"connections_total"`
	Denied        int64             `json:"connections_denied"`
	Active        int64             `json:"sessions_active"`
	Listeners     []ListenerSummary `json:"listeners"`
}
