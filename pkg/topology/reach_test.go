package topology

import (
	"testing"

	"github.com/icsrange/netsim/pkg/seclog"
)

func loadedStore(t *testing.T) *Store {
	t.Helper()
	store := newTestStore()
	if err := store.Load([]byte(sampleTopology)); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestCanReachMemberNetwork(t *testing.T) {
	store := loadedStore(t)
	store.ExposeService("plc1", "modbus", 502)

	if !store.CanReach("control_net", "plc1", "modbus", 502) {
		t.Error("CanReach(control_net, plc1, modbus, 502) = false, want true")
	}
	if store.CanReach("corp_net", "plc1", "modbus", 502) {
		t.Error("CanReach(corp_net, plc1, modbus, 502) = true, want false")
	}
}

func TestCanReachNoService(t *testing.T) {
	store := loadedStore(t)

	if store.CanReach("control_net", "plc1", "modbus", 502) {
		t.Error("CanReach() = true with no service exposed")
	}

	store.ExposeService("plc1", "modbus", 502)
	if store.CanReach("control_net", "plc1", "modbus", 503) {
		t.Error("CanReach() = true for a port with no service")
	}
}

func TestCanReachProtocolMismatch(t *testing.T) {
	store := loadedStore(t)
	store.ExposeService("plc1", "modbus", 502)

	if store.CanReach("control_net", "plc1", "s7", 502) {
		t.Error("CanReach() = true despite protocol mismatch")
	}
	// Protocol comparison is case-sensitive
	if store.CanReach("control_net", "plc1", "Modbus", 502) {
		t.Error("CanReach() = true despite protocol case mismatch")
	}
}

func TestCanReachOrphanedDevice(t *testing.T) {
	store := loadedStore(t)
	// lonely is not in any connections table entry
	store.ExposeService("lonely", "modbus", 502)

	for _, network := range []string{"control_net", "ops_net", "corp_net", "internet"} {
		if store.CanReach(network, "lonely", "modbus", 502) {
			t.Errorf("CanReach(%s, lonely, ...) = true for device with no networks", network)
		}
	}
}

func TestCanReachEmitsSecurityEvent(t *testing.T) {
	recorder := seclog.NewRecorder(16)
	store := NewStore(StoreConfig{Security: recorder})
	store.Load([]byte(sampleTopology))
	store.ExposeService("plc1", "modbus", 502)

	store.CanReach("internet", "plc1", "modbus", 502)

	events := recorder.Query(&seclog.Filter{Type: seclog.EventReachabilityDenied})
	if len(events) != 1 {
		t.Fatalf("got %d reachability_denied events, want 1", len(events))
	}
	event := events[0]
	if event.SourceNetwork != "internet" || event.Device != "plc1" || event.Port != 502 || event.Protocol != "modbus" {
		t.Errorf("security event fields = %+v", event)
	}
	if len(event.DestNetworks) != 1 || event.DestNetworks[0] != "control_net" {
		t.Errorf("security event dest networks = %v, want [control_net]", event.DestNetworks)
	}

	// Denials earlier in the chain (no service) are not security events
	store.CanReach("internet", "plc1", "modbus", 9999)
	if got := recorder.EventCount(); got != 1 {
		t.Errorf("EventCount = %d after no-service denial, want still 1", got)
	}
}

func TestCanReachFromDeviceUnionSemantics(t *testing.T) {
	store := loadedStore(t)
	// historian is only on ops_net; hmi1 is dual-homed on control_net and ops_net
	store.ExposeService("plc1", "modbus", 502)
	store.ExposeService("historian", "opcua", 4840)

	// hmi1 reaches plc1 through control_net and historian through ops_net
	if !store.CanReachFromDevice("hmi1", "plc1", "modbus", 502) {
		t.Error("CanReachFromDevice(hmi1, plc1) = false, want true via control_net")
	}
	if !store.CanReachFromDevice("hmi1", "historian", "opcua", 4840) {
		t.Error("CanReachFromDevice(hmi1, historian) = false, want true via ops_net")
	}

	// historian cannot reach plc1: ops_net is not one of plc1's networks
	if store.CanReachFromDevice("historian", "plc1", "modbus", 502) {
		t.Error("CanReachFromDevice(historian, plc1) = true, want false")
	}

	// A device with no memberships reaches nothing
	if store.CanReachFromDevice("ghost", "plc1", "modbus", 502) {
		t.Error("CanReachFromDevice(ghost, plc1) = true, want false")
	}
}
