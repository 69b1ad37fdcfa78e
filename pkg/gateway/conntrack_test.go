package gateway

import (
	"testing"
	"time"
)

func TestConnRegistryKill(t *testing.T) {
	r := NewConnRegistry()

	killed := false
	r.Register(SessionInfo{ID: "s1", Device: "plc1"}, func() { killed = true })

	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	if !r.Kill("s1") {
		t.Error("Kill(s1) = false, want true")
	}
	if !killed {
		t.Error("closer was not invoked")
	}
	if r.Count() != 0 {
		t.Errorf("Count() after kill = %d, want 0", r.Count())
	}

	// Unknown and already killed IDs are not errors
	if r.Kill("s1") {
		t.Error("Kill(s1) after removal = true, want false")
	}
	if r.Kill("nope") {
		t.Error("Kill(nope) = true, want false")
	}
}

func TestConnRegistryDeregisterIdempotent(t *testing.T) {
	r := NewConnRegistry()
	r.Register(SessionInfo{ID: "s1"}, func() {})

	r.Deregister("s1")
	r.Deregister("s1")
	r.Deregister("never-existed")

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestConnRegistryKillAll(t *testing.T) {
	r := NewConnRegistry()

	var closed int
	for _, id := range []string{"a", "b", "c"} {
		r.Register(SessionInfo{ID: id}, func() { closed++ })
	}

	if n := r.KillAll(); n != 3 {
		t.Errorf("KillAll() = %d, want 3", n)
	}
	if closed != 3 {
		t.Errorf("closed = %d, want 3", closed)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestConnRegistrySessionsOrdered(t *testing.T) {
	r := NewConnRegistry()
	base := time.Now().UTC()

	r.Register(SessionInfo{ID: "later", StartedAt: base.Add(time.Second)}, func() {})
	r.Register(SessionInfo{ID: "earlier", StartedAt: base}, func() {})

	sessions := r.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("Sessions() len = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "earlier" || sessions[1].ID != "later" {
		t.Errorf("sessions out of order: %s, %s", sessions[0].ID, sessions[1].ID)
	}
}

func TestConnRegistryFillsStartTime(t *testing.T) {
	r := NewConnRegistry()
	r.Register(SessionInfo{ID: "s1"}, func() {})

	sessions := r.Sessions()
	if sessions[0].StartedAt.IsZero() {
		t.Error("StartedAt was not defaulted")
	}
}
