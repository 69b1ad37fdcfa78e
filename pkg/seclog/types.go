package seclog

import (
	"errors"
	"time"
)

// Errors for security event logging
var (
	ErrSinkClosed   = errors.New("security log sink is closed")
	ErrInvalidEvent = errors.New("invalid security event")
)

// Severity levels for security events
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventType classifies what a security event describes
type EventType string

const (
	EventReachabilityDenied EventType = "reachability_denied"
	EventFirewallDenied     EventType = "firewall_denied"
	EventIntrusionBlocked   EventType = "intrusion_blocked"
	EventSessionOpened      EventType = "session_opened"
	EventSessionClosed      EventType = "session_closed"
	EventSessionKilled      EventType = "session_killed"
	EventTopologyReloaded   EventType = "topology_reloaded"
)

// Event represents a single security event emitted by the virtual network layer
type Event struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Severity      Severity       `json:"severity"`
	Type          EventType      `json:"type,omitempty"`
	Message       string         `json:"message"`
	SourceNetwork string         `json:"source_network,omitempty"`
	SourceAddress string         `json:"source_address,omitempty"`
	DestNetworks  []string       `json:"dest_networks,omitempty"`
	Device        string         `json:"device,omitempty"`
	Protocol      string         `json:"protocol,omitempty"`
	Port          int            `json:"port,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// Filter represents filtering criteria for security events
type Filter struct {
	Severity      Severity
	Type          EventType
	SourceNetwork string
	Device        string
	StartTime     *time.Time
	EndTime       *time.Time
}

// Matches reports whether an event satisfies every set filter field
func (f *Filter) Matches(event *Event) bool {
	if f.Severity != "" && event.Severity != f.Severity {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.SourceNetwork != "" && event.SourceNetwork != f.SourceNetwork {
		return false
	}
	if f.Device != "" && event.Device != f.Device {
		return false
	}
	if f.StartTime != nil && event.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && event.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// Sink is the interface for security event destinations.
// The in-memory Recorder, the FileSink, the Publisher and the PGStore
// all implement it.
type Sink interface {
	// Log records a security event
	Log(event *Event) error

	// EventCount returns the number of events logged
	EventCount() int64
}

// SecurityLogger is the surface the enforcement pipeline writes to
type SecurityLogger interface {
	Sink

	// LogSecurity records a free-form security message with severity and data
	LogSecurity(message string, severity Severity, data map[string]any) error
}
