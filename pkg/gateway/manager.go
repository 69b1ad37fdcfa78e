package gateway

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/icsrange/netsim/pkg/logging"
	"github.com/icsrange/netsim/pkg/metrics"
	"github.com/icsrange/netsim/pkg/seclog"
	"github.com/icsrange/netsim/pkg/topology"
	"github.com/icsrange/netsim/pkg/validation"
)

// Manager owns the set of gateway listeners and keeps the topology
// store's service registry in step with them. One listener per exposed
// (device, port) pair.
type Manager struct {
	store      *topology.Store
	config     Config
	classifier Classifier
	firewall   Firewall
	intrusion  Intrusion
	tap        Tap
	logger     logging.Logger
	security   seclog.Sink
	metrics    *metrics.Registry

	mu        sync.Mutex
	listeners map[topology.ServiceKey]*Listener
}

// ManagerConfig carries the shared dependencies of all listeners
type ManagerConfig struct {
	Store      *topology.Store
	Config     Config
	Classifier Classifier
	Firewall   Firewall
	Intrusion  Intrusion
	Tap        Tap
	Logger     logging.Logger
	Security   seclog.Sink
	Metrics    *metrics.Registry
}

// NewManager creates a gateway manager bound to a topology store
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("topology store is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = FixedClassifier(DefaultNetwork)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Security == nil {
		cfg.Security = seclog.NewRecorder(0)
	}
	if cfg.Config.PortOffset == 0 {
		cfg.Config = DefaultConfig()
	}

	return &Manager{
		store:      cfg.Store,
		config:     cfg.Config,
		classifier: cfg.Classifier,
		firewall:   cfg.Firewall,
		intrusion:  cfg.Intrusion,
		tap:        cfg.Tap,
		logger:     cfg.Logger.With(logging.Component("gateway-manager")),
		security:   cfg.Security,
		metrics:    cfg.Metrics,
		listeners:  make(map[topology.ServiceKey]*Listener),
	}, nil
}

// Register exposes a service in the topology store and creates its
// listener. The listener is not started, call Start or StartAll.
func (m *Manager) Register(device, network, protocol string, port int) (*Listener, error) {
	if err := validation.ValidateRegisterRequest(&validation.RegisterRequest{
		Device:   device,
		Network:  network,
		Port:     port,
		Protocol: protocol,
	}); err != nil {
		return nil, err
	}

	if err := m.store.ExposeService(device, protocol, port); err != nil {
		return nil, err
	}

	listener, err := NewListener(ListenerConfig{
		Device:     device,
		Network:    network,
		Protocol:   protocol,
		Port:       port,
		Config:     m.config,
		Reach:      m.store,
		Classifier: m.classifier,
		Firewall:   m.firewall,
		Intrusion:  m.intrusion,
		Tap:        m.tap,
		Logger:     m.logger,
		Security:   m.security,
		Metrics:    m.metrics,
	})
	if err != nil {
		m.store.UnexposeService(device, port)
		return nil, err
	}

	key := topology.ServiceKey{Device: device, Port: port}
	m.mu.Lock()
	if existing, ok := m.listeners[key]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.listeners[key] = listener
	count := len(m.listeners)
	m.mu.Unlock()

	m.metrics.SetExposedServices(count)
	m.logger.Info("service registered",
		logging.Device(device),
		logging.Network(network),
		logging.Protocol(protocol),
		logging.Port(port))
	return listener, nil
}

// Deregister stops a service's listener and removes it from the store
func (m *Manager) Deregister(device string, port int) error {
	key := topology.ServiceKey{Device: device, Port: port}

	m.mu.Lock()
	listener, ok := m.listeners[key]
	if ok {
		delete(m.listeners, key)
	}
	count := len(m.listeners)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no listener for %s port %d", topology.ErrInvalidInput, device, port)
	}

	if listener.State() == StateRunning {
		if err := listener.Stop(); err != nil {
			return err
		}
	}
	m.store.UnexposeService(device, port)
	m.metrics.SetExposedServices(count)
	m.logger.Info("service deregistered", logging.Device(device), logging.Port(port))
	return nil
}

// StartAll starts every registered listener concurrently. A bind failure
// on one listener does not stop the others, all failures are joined.
func (m *Manager) StartAll() error {
	listeners := m.snapshot()

	var wg sync.WaitGroup
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			if err := l.Start(); err != nil && !errors.Is(err, ErrAlreadyStarted) {
				errCh <- err
			}
		}(l)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StopAll stops every running listener concurrently
func (m *Manager) StopAll() error {
	listeners := m.snapshot()

	var wg sync.WaitGroup
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			if err := l.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
				errCh <- err
			}
		}(l)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// KillConnection terminates a live session by ID across all listeners
func (m *Manager) KillConnection(sessionID string) bool {
	for _, l := range m.snapshot() {
		if l.Kill(sessionID) {
			return true
		}
	}
	return false
}

// Listener returns the listener for an exposed (device, port) pair
func (m *Manager) Listener(device string, port int) (*Listener, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listeners[topology.ServiceKey{Device: device, Port: port}]
	return l, ok
}

// Sessions returns all live sessions across listeners
func (m *Manager) Sessions() []SessionInfo {
	var out []SessionInfo
	for _, l := range m.snapshot() {
		out = append(out, l.registry.Sessions()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Summary returns the aggregate operational view
func (m *Manager) Summary(includeSessions bool) ManagerSummary {
	listeners := m.snapshot()

	summary := ManagerSummary{
		ListenerCount: len(listeners),
		Listeners:     make([]ListenerSummary, 0, len(listeners)),
	}
	for _, l := range listeners {
		ls := l.Summary(includeSessions)
		if ls.State == StateRunning.String() {
			summary.Running++
		}
		summary.Total += ls.Total
		summary.Denied += ls.Denied
		summary.Active += ls.Active
		summary.Listeners = append(summary.Listeners, ls)
	}
	sort.Slice(summary.Listeners, func(i, j int) bool {
		if summary.Listeners[i].Device == summary.Listeners[j].Device {
			return summary.Listeners[i].Port < summary.Listeners[j].Port
		}
		return summary.Listeners[i].Device < summary.Listeners[j].Device
	})
	return summary
}

func (m *Manager) snapshot() []*Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}
