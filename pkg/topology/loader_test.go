package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleTopology = `
zones:
  - name: control
    description: Process control zone
    security_level: 3
    networks:
      - name: control_net
        subnet: 10.0.2.0/24
  - name: operations
    description: Supervisory zone
    security_level: 2
    networks:
      - name: ops_net
networks:
  - name: corp_net
  - name: internet
connections:
  control_net:
    - plc1
    - device: hmi1
      ip: 10.0.2.5
  ops_net:
    - hmi1
    - historian
  corp_net:
    - device: workstation1
`

func newTestStore() *Store {
	return NewStore(StoreConfig{})
}

func TestLoadMergesZonedAndFlatNetworks(t *testing.T) {
	store := newTestStore()
	if err := store.Load([]byte(sampleTopology)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	summary := store.Summary()
	if summary.NetworkCount != 4 {
		t.Errorf("NetworkCount = %d, want 4", summary.NetworkCount)
	}
	if summary.DeviceCount != 4 {
		t.Errorf("DeviceCount = %d, want 4", summary.DeviceCount)
	}

	nw, ok := store.Network("control_net")
	if !ok {
		t.Fatal("control_net not loaded")
	}
	if nw.Zone != "control" || nw.SecurityLevel != 3 {
		t.Errorf("control_net zone = %q level = %d, want control/3", nw.Zone, nw.SecurityLevel)
	}
	if nw.Metadata["subnet"] != "10.0.2.0/24" {
		t.Errorf("control_net subnet metadata = %q", nw.Metadata["subnet"])
	}

	if nw, _ := store.Network("corp_net"); nw.Zone != "" {
		t.Errorf("flat network corp_net has zone %q, want none", nw.Zone)
	}
}

func TestLoadMemberships(t *testing.T) {
	store := newTestStore()
	if err := store.Load([]byte(sampleTopology)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	networks := store.DeviceNetworks("hmi1")
	if len(networks) != 2 {
		t.Fatalf("hmi1 belongs to %d networks, want 2 (dual-homed)", len(networks))
	}

	devices := store.NetworkDevices("control_net")
	if len(devices) != 2 {
		t.Errorf("control_net has %d devices, want 2", len(devices))
	}

	if got := store.DeviceNetworks("unknown-device"); len(got) != 0 {
		t.Errorf("unknown device has %d networks, want 0", len(got))
	}
}

func TestLoadUnknownNetworkInConnections(t *testing.T) {
	store := newTestStore()
	doc := `
networks:
  - name: control_net
connections:
  ghost_net:
    - plc1
`
	// Forward references to unknown networks are logged, not fatal
	if err := store.Load([]byte(doc)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := store.DeviceNetworks("plc1"); len(got) != 1 {
		t.Errorf("plc1 networks = %v, membership should still be recorded", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	store := newTestStore()

	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "{{{{"},
		{"connections not a list", "connections:\n  control_net: 42\n"},
		{"network without name", "networks:\n  - subnet: 10.0.0.0/24\n"},
		{"device without name", "networks:\n  - name: a\nconnections:\n  a:\n    - ip: 10.0.0.1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Load([]byte(tt.doc))
			if !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("Load() error = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	store := newTestStore()
	// No networks defined is tolerated with a warning
	if err := store.Load([]byte("")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if summary := store.Summary(); summary.NetworkCount != 0 {
		t.Errorf("NetworkCount = %d, want 0", summary.NetworkCount)
	}
}

func TestLoadFileMissing(t *testing.T) {
	store := newTestStore()
	err := store.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigMissing) {
		t.Errorf("LoadFile() error = %v, want ErrConfigMissing", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	if err := os.WriteFile(path, []byte(sampleTopology), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newTestStore()
	if err := store.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if summary := store.Summary(); summary.NetworkCount != 4 {
		t.Errorf("NetworkCount = %d, want 4", summary.NetworkCount)
	}
}

func TestReloadReplacesWholesale(t *testing.T) {
	store := newTestStore()
	if err := store.Load([]byte(sampleTopology)); err != nil {
		t.Fatal(err)
	}

	replacement := `
networks:
  - name: lab_net
connections:
  lab_net:
    - bench1
`
	if err := store.Load([]byte(replacement)); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	if _, ok := store.Network("control_net"); ok {
		t.Error("control_net survived reload, replacement must be wholesale")
	}
	if got := store.DeviceNetworks("plc1"); len(got) != 0 {
		t.Errorf("plc1 memberships survived reload: %v", got)
	}
	if got := store.DeviceNetworks("bench1"); len(got) != 1 {
		t.Errorf("bench1 networks = %v, want [lab_net]", got)
	}
}
