package topology

import (
	"errors"
	"testing"
)

type fakeDeviceRegistry struct {
	known map[string]bool
}

func (f *fakeDeviceRegistry) HasDevice(name string) bool {
	return f.known[name]
}

func TestExposeService(t *testing.T) {
	store := newTestStore()
	if err := store.Load([]byte(sampleTopology)); err != nil {
		t.Fatal(err)
	}

	if err := store.ExposeService("plc1", "modbus", 502); err != nil {
		t.Fatalf("ExposeService() error = %v", err)
	}

	services := store.AllServices()
	if got := services[ServiceKey{Device: "plc1", Port: 502}]; got != "modbus" {
		t.Errorf("exposed protocol = %q, want modbus", got)
	}
}

func TestExposeServiceValidation(t *testing.T) {
	store := newTestStore()

	tests := []struct {
		name     string
		device   string
		protocol string
		port     int
	}{
		{"empty device", "", "modbus", 502},
		{"empty protocol", "plc1", "", 502},
		{"port zero", "plc1", "modbus", 0},
		{"port too large", "plc1", "modbus", 65536},
		{"negative port", "plc1", "modbus", -502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.ExposeService(tt.device, tt.protocol, tt.port)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ExposeService() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestExposeServiceIdempotentOverwrite(t *testing.T) {
	store := newTestStore()
	store.Load([]byte(sampleTopology))

	store.ExposeService("plc1", "modbus", 502)
	store.ExposeService("plc1", "s7", 502)

	services := store.AllServices()
	if len(services) != 1 {
		t.Fatalf("got %d services, want exactly 1 for the (device, port) pair", len(services))
	}
	if got := services[ServiceKey{Device: "plc1", Port: 502}]; got != "s7" {
		t.Errorf("protocol = %q, want latest value s7", got)
	}
}

func TestExposeUnknownDeviceProceedsWithWarning(t *testing.T) {
	store := NewStore(StoreConfig{
		Devices: &fakeDeviceRegistry{known: map[string]bool{"plc1": true}},
	})
	store.Load([]byte(sampleTopology))

	// Unknown to the registry, but registration still proceeds
	if err := store.ExposeService("adhoc-tool", "http", 8080); err != nil {
		t.Fatalf("ExposeService() error = %v", err)
	}
	if len(store.AllServices()) != 1 {
		t.Error("ad-hoc exposure was not recorded")
	}
}

func TestUnexposeService(t *testing.T) {
	store := newTestStore()
	store.Load([]byte(sampleTopology))
	store.ExposeService("plc1", "modbus", 502)

	if !store.UnexposeService("plc1", 502) {
		t.Error("UnexposeService() = false for an existing service")
	}
	if store.UnexposeService("plc1", 502) {
		t.Error("UnexposeService() = true for a removed service")
	}
	if len(store.AllServices()) != 0 {
		t.Error("service map not empty after unexpose")
	}
}

func TestQueriesReturnDefensiveCopies(t *testing.T) {
	store := newTestStore()
	store.Load([]byte(sampleTopology))
	store.ExposeService("plc1", "modbus", 502)

	services := store.AllServices()
	services[ServiceKey{Device: "evil", Port: 1}] = "backdoor"
	if len(store.AllServices()) != 1 {
		t.Error("mutating AllServices() result leaked into the store")
	}

	networks := store.DeviceNetworks("hmi1")
	networks[0] = "mutated"
	for _, n := range store.DeviceNetworks("hmi1") {
		if n == "mutated" {
			t.Error("mutating DeviceNetworks() result leaked into the store")
		}
	}

	nw, _ := store.Network("control_net")
	nw.Metadata["subnet"] = "0.0.0.0/0"
	fresh, _ := store.Network("control_net")
	if fresh.Metadata["subnet"] != "10.0.2.0/24" {
		t.Error("mutating Network() metadata leaked into the store")
	}
}

func TestSummaryCounts(t *testing.T) {
	store := newTestStore()
	store.Load([]byte(sampleTopology))
	store.ExposeService("plc1", "modbus", 502)
	store.ExposeService("hmi1", "http", 80)
	store.ExposeService("historian", "modbus", 502)

	summary := store.Summary()
	if summary.ServiceCount != 3 {
		t.Errorf("ServiceCount = %d, want 3", summary.ServiceCount)
	}
	if summary.ByProtocol["modbus"] != 2 {
		t.Errorf("ByProtocol[modbus] = %d, want 2", summary.ByProtocol["modbus"])
	}
	if summary.ByNetwork["control_net"] != 2 {
		t.Errorf("ByNetwork[control_net] = %d, want 2", summary.ByNetwork["control_net"])
	}
}

func TestReset(t *testing.T) {
	store := newTestStore()
	store.Load([]byte(sampleTopology))
	store.ExposeService("plc1", "modbus", 502)

	store.Reset()

	summary := store.Summary()
	if summary.NetworkCount != 0 || summary.DeviceCount != 0 || summary.ServiceCount != 0 {
		t.Errorf("Summary after Reset = %+v, want all zero", summary)
	}
	if store.CanReach("control_net", "plc1", "modbus", 502) {
		t.Error("CanReach() = true after Reset")
	}
}
