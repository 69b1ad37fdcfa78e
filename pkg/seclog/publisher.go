package seclog

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register all transports (tcp, ipc, inproc, ws)
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Topic is the subscription prefix for published security events
const Topic = "seclog"

// Publisher fans security events out to SIEM subscribers over a pub socket
type Publisher struct {
	sock      mangos.Socket
	addr      string
	published int64
	mu        sync.Mutex
	closed    bool
}

// NewPublisher creates a publisher listening on the given address
// (e.g. tcp://0.0.0.0:5560 or inproc://seclog for tests)
func NewPublisher(addr string) (*Publisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Publisher{sock: sock, addr: addr}, nil
}

// Log publishes a security event. Messages are framed as
// "seclog.<severity> <json>" so subscribers can filter by prefix.
func (p *Publisher) Log(event *Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := make([]byte, 0, len(Topic)+len(event.Severity)+2+len(data))
	msg = append(msg, Topic...)
	msg = append(msg, '.')
	msg = append(msg, event.Severity...)
	msg = append(msg, ' ')
	msg = append(msg, data...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSinkClosed
	}
	if err := p.sock.Send(msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	atomic.AddInt64(&p.published, 1)
	return nil
}

// EventCount returns the number of events published
func (p *Publisher) EventCount() int64 {
	return atomic.LoadInt64(&p.published)
}

// Addr returns the listen address
func (p *Publisher) Addr() string {
	return p.addr
}

// Close closes the pub socket
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sock.Close()
}

// DecodeMessage splits a published message back into its topic and event
func DecodeMessage(msg []byte) (string, *Event, error) {
	for i, b := range msg {
		if b == ' ' {
			var event Event
			if err := json.Unmarshal(msg[i+1:], &event); err != nil {
				return "", nil, fmt.Errorf("failed to decode event: %w", err)
			}
			return string(msg[:i]), &event, nil
		}
	}
	return "", nil, fmt.Errorf("%w: missing topic separator", ErrInvalidEvent)
}
