package gateway

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/icsrange/netsim/pkg/logging"
	"github.com/icsrange/netsim/pkg/metrics"
	"github.com/icsrange/netsim/pkg/seclog"
)

// Listener is the public face of one exposed service. It accepts real TCP
// connections on the external port, runs the enforcement chain for each
// peer, and splices allowed connections to the protocol server listening
// on the loopback internal port.
type Listener struct {
	device   string
	network  string
	protocol string
	port     int

	config     Config
	reach      Reachability
	classifier Classifier
	firewall   Firewall
	intrusion  Intrusion
	registry   *ConnRegistry
	tap        Tap
	logger     logging.Logger
	security   seclog.Sink
	metrics    *metrics.Registry

	state atomic.Int32

	mu sync.Mutex
	ln net.Listener

	stopCh chan struct{}
	wg     sync.WaitGroup

	total  atomic.Int64
	denied atomic.Int64
}

// ListenerConfig carries the dependencies of one listener. Reach and
// Classifier are required, the rest have safe defaults.
type ListenerConfig struct {
	Device   string
	Network  string
	Protocol string
	Port     int

	Config     Config
	Reach      Reachability
	Classifier Classifier
	Firewall   Firewall
	Intrusion  Intrusion
	Tap        Tap
	Logger     logging.Logger
	Security   seclog.Sink
	Metrics    *metrics.Registry
}

// NewListener creates a stopped listener for one exposed service
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Reach == nil {
		return nil, fmt.Errorf("reachability engine is required")
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
		cfg.Config.PortOffset = DefaultPortOffset
	}
	if cfg.Config.DialTimeout == 0 {
		cfg.Config.DialTimeout = DefaultConfig().DialTimeout
	}
	if cfg.Config.StopGrace == 0 {
		cfg.Config.StopGrace = DefaultConfig().StopGrace
	}

	return &Listener{
		device:     cfg.Device,
		network:    cfg.Network,
		protocol:   cfg.Protocol,
		port:       cfg.Port,
		config:     cfg.Config,
		reach:      cfg.Reach,
		classifier: cfg.Classifier,
		firewall:   cfg.Firewall,
		intrusion:  cfg.Intrusion,
		registry:   NewConnRegistry(),
		tap:        cfg.Tap,
		logger:     cfg.Logger.With(logging.Component("gateway"), logging.Device(cfg.Device)),
		security:   cfg.Security,
		metrics:    cfg.Metrics,
	}, nil
}

// InternalPort returns the loopback port the protocol server must bind
func (l *Listener) InternalPort() int {
	return l.port + l.config.PortOffset
}

// State returns the listener's lifecycle state
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Start binds the external port and launches the accept loop
func (l *Listener) Start() error {
	if !l.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("%w: %s port %d", ErrAlreadyStarted, l.device, l.port)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		l.state.Store(int32(StateStopped))
		l.metrics.RecordBindFailure()
		return fmt.Errorf("%w: %s port %d: %v", ErrBindFailed, l.device, l.port, err)
	}

	l.mu.Lock()
	l.ln = ln
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	l.state.Store(int32(StateRunning))
	l.metrics.ListenerStarted()
	l.logger.Info("gateway listener started",
		logging.Port(l.port),
		logging.Int("internal_port", l.InternalPort()),
		logging.Protocol(l.protocol))

	l.wg.Add(1)
	go l.acceptLoop(ln, l.stopCh)
	return nil
}

// Stop closes the external port, kills live sessions and waits for the
// accept loop to drain
func (l *Listener) Stop() error {
	if !l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("%w: %s port %d", ErrNotRunning, l.device, l.port)
	}

	l.mu.Lock()
	close(l.stopCh)
	ln := l.ln
	l.ln = nil
	l.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	l.registry.KillAll()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(l.config.StopGrace):
		l.logger.Warn("gateway listener stop grace exceeded", logging.Port(l.port))
	}

	l.state.Store(int32(StateStopped))
	l.metrics.ListenerStopped()
	l.logger.Info("gateway listener stopped", logging.Port(l.port))
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener, stopCh <-chan struct{}) {
	defer l.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
				l.logger.Warn("accept failed", logging.Error(err))
				continue
			}
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConnection(conn)
		}()
	}
}

// handleConnection runs the enforcement chain and splices allowed peers
// to the protocol server
func (l *Listener) handleConnection(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	l.total.Add(1)

	sourceNetwork := l.classifier.Classify(peer)

	if !l.reach.CanReach(sourceNetwork, l.device, l.protocol, l.port) {
		l.metrics.RecordReachabilityCheck("deny")
		l.deny(conn, peer, sourceNetwork, "reachability")
		return
	}
	l.metrics.RecordReachabilityCheck("allow")

	if l.firewall != nil && !l.firewall.CheckConnection(sourceNetwork, peer, l.device, l.protocol, l.port) {
		l.logSecurityEvent(seclog.EventFirewallDenied, seclog.SeverityWarning,
			"connection denied by firewall rules", peer, sourceNetwork, "")
		l.deny(conn, peer, sourceNetwork, "firewall")
		return
	}

	if l.intrusion != nil && l.intrusion.IsBlocked(peer) {
		l.logSecurityEvent(seclog.EventIntrusionBlocked, seclog.SeverityCritical,
			"connection blocked by intrusion prevention", peer, sourceNetwork, "")
		l.deny(conn, peer, sourceNetwork, "intrusion")
		return
	}

	upstream, err := net.DialTimeout("tcp",
		fmt.Sprintf("127.0.0.1:%d", l.InternalPort()), l.config.DialTimeout)
	if err != nil {
		l.logger.Error("protocol server unreachable",
			logging.Int("internal_port", l.InternalPort()),
			logging.Error(err))
		conn.Close()
		l.metrics.RecordConnection(l.device, "upstream_error")
		return
	}

	l.metrics.RecordConnection(l.device, "allowed")
	l.splice(conn, upstream, peer, sourceNetwork)
}

// deny terminates a rejected connection. Default behavior drops the
// connection by closing it. In reject mode the close carries an RST so
// scanners see an active refusal instead of a timeout.
func (l *Listener) deny(conn net.Conn, peer, sourceNetwork, stage string) {
	l.denied.Add(1)
	l.metrics.RecordDenial(l.device, stage)

	if l.config.RejectOnDeny {
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetLinger(0)
		}
	}
	conn.Close()

	l.logger.Info("connection denied",
		logging.Peer(peer),
		logging.Network(sourceNetwork),
		logging.String("stage", stage),
		logging.Port(l.port))
}

// splice relays traffic between the peer and the protocol server until
// either side closes or the session is killed
func (l *Listener) splice(client, upstream net.Conn, peer, sourceNetwork string) {
	sessionID := uuid.New().String()

	var closeOnce sync.Once
	closer := func() {
		closeOnce.Do(func() {
			client.Close()
			upstream.Close()
		})
	}

	l.registry.Register(SessionInfo{
		ID:            sessionID,
		Peer:          peer,
		SourceNetwork: sourceNetwork,
		Device:        l.device,
		Protocol:      l.protocol,
		Port:          l.port,
	}, closer)
	l.metrics.SessionOpened()

	l.logSecurityEvent(seclog.EventSessionOpened, seclog.SeverityInfo,
		"proxied session opened", peer, sourceNetwork, sessionID)
	l.logger.Info("session opened",
		logging.SessionID(sessionID),
		logging.Peer(peer),
		logging.Network(sourceNetwork))

	var relayWG sync.WaitGroup
	relayWG.Add(2)
	go l.relay(&relayWG, sessionID, upstream, client, "inbound")
	go l.relay(&relayWG, sessionID, client, upstream, "outbound")
	relayWG.Wait()

	closer()
	l.registry.Deregister(sessionID)
	l.metrics.SessionClosed()

	l.logSecurityEvent(seclog.EventSessionClosed, seclog.SeverityInfo,
		"proxied session closed", peer, sourceNetwork, sessionID)
	l.logger.Info("session closed", logging.SessionID(sessionID))
}

// relay copies one direction of the session and half-closes the
// destination so the other side observes EOF
func (l *Listener) relay(wg *sync.WaitGroup, sessionID string, dst, src net.Conn, direction string) {
	defer wg.Done()

	var reader io.Reader = src
	if l.tap != nil {
		reader = io.TeeReader(src, &tapWriter{tap: l.tap, sessionID: sessionID, direction: direction})
	}

	n, _ := io.Copy(dst, reader)
	l.metrics.RecordBytesRelayed(direction, n)

	if tcp, ok := dst.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}
}

// tapWriter feeds relayed chunks to the traffic tap
type tapWriter struct {
	tap       Tap
	sessionID string
	direction string
}

func (w *tapWriter) Write(p []byte) (int, error) {
	w.tap.Capture(w.sessionID, w.direction, p)
	return len(p), nil
}

// Kill terminates one live session by ID
func (l *Listener) Kill(sessionID string) bool {
	if !l.registry.Kill(sessionID) {
		return false
	}
	l.metrics.SessionKilled()
	l.logSecurityEvent(seclog.EventSessionKilled, seclog.SeverityWarning,
		"session killed by operator", "", "", sessionID)
	l.logger.Warn("session killed", logging.SessionID(sessionID))
	return true
}

// Summary returns the operational view of the listener
func (l *Listener) Summary(includeSessions bool) ListenerSummary {
	s := ListenerSummary{
		Device:       l.device,
		Network:      l.network,
		Port:         l.port,
		InternalPort: l.InternalPort(),
		Protocol:     l.protocol,
		State:        l.State().String(),
		Total:        l.total.Load(),
		Denied:       l.denied.Load(),
		Active:       int64(l.registry.Count()),
	}
	if includeSessions {
		s.Sessions = l.registry.Sessions()
	}
	return s
}

func (l *Listener) logSecurityEvent(eventType seclog.EventType, severity seclog.Severity, message, peer, sourceNetwork, sessionID string) {
	event := &seclog.Event{
		Severity:      severity,
		Type:          eventType,
		Message:       message,
		SourceNetwork: sourceNetwork,
		SourceAddress: peer,
		Device:        l.device,
		Protocol:      l.protocol,
		Port:          l.port,
		SessionID:     sessionID,
	}
	if err := l.security.Log(event); err != nil {
		l.logger.Warn("security event dropped", logging.Error(err))
	}
	l.metrics.RecordSecurityEvent(string(severity))
}
