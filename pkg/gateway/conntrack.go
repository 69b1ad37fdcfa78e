package gateway

import (
	"sort"
	"sync"
	"time"
)

// session is one tracked proxied connection and the hook to tear it down
type session struct {
	info   SessionInfo
	closer func()
}

// ConnRegistry tracks live proxied sessions for a single listener and
// supports operator-initiated termination
type ConnRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewConnRegistry creates an empty connection registry
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		sessions: make(map[string]*session),
	}
}

// Register tracks a new session. The closer must be safe to call more than
// once and from any goroutine.
func (r *ConnRegistry) Register(info SessionInfo, closer func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	r.sessions[info.ID] = &session{info: info, closer: closer}
}

// Deregister removes a session. Safe to call for unknown or already
// removed IDs.
func (r *ConnRegistry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Kill terminates a session by ID. Returns false when the session is
// unknown. The closer runs outside the lock so teardown cannot deadlock
// against Deregister.
func (r *ConnRegistry) Kill(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.closer()
	return true
}

// KillAll terminates every tracked session and returns how many were killed
func (r *ConnRegistry) KillAll() int {
	r.mu.Lock()
	victims := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		victims = append(victims, s)
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range victims {
		s.closer()
	}
	return len(victims)
}

// Count returns the number of tracked sessions
func (r *ConnRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of tracked sessions ordered by start time
func (r *ConnRegistry) Sessions() []SessionInfo {
	r.mu.Lock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
