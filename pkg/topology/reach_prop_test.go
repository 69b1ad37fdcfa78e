package topology

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propNetworks = []string{"control_net", "ops_net", "corp_net", "dmz", "internet"}

// buildStore loads a topology where destDevice belongs to destNets and
// srcDevice belongs to srcNets
func buildPropStore(srcNets, destNets []int) *Store {
	var doc strings.Builder
	doc.WriteString("networks:\n")
	for _, name := range propNetworks {
		fmt.Fprintf(&doc, "  - name: %s\n", name)
	}
	doc.WriteString("connections:\n")
	memberships := make(map[string][]string)
	for _, i := range destNets {
		name := propNetworks[i%len(propNetworks)]
		memberships[name] = append(memberships[name], "dest")
	}
	for _, i := range srcNets {
		name := propNetworks[i%len(propNetworks)]
		memberships[name] = append(memberships[name], "src")
	}
	for network, devices := range memberships {
		fmt.Fprintf(&doc, "  %s:\n", network)
		for _, device := range devices {
			fmt.Fprintf(&doc, "    - %s\n", device)
		}
	}

	store := NewStore(StoreConfig{})
	if err := store.Load([]byte(doc.String())); err != nil {
		panic(err)
	}
	return store
}

// TestReachabilityInvariants uses property-based testing to verify the
// reachability decision. These properties should ALWAYS hold for any
// topology and any exposure.
func TestReachabilityInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	netIndex := gen.IntRange(0, len(propNetworks)-1)

	// Property 1: a destination with no service is unreachable from everywhere
	properties.Property("no service means no reachability", prop.ForAll(
		func(destNets []int, source int) bool {
			store := buildPropStore(nil, destNets)
			return !store.CanReach(propNetworks[source], "dest", "modbus", 502)
		},
		gen.SliceOf(netIndex),
		netIndex,
	))

	// Property 2: with a service exposed, reachability holds exactly for
	// member networks with an exact protocol match
	properties.Property("reachability iff membership and protocol match", prop.ForAll(
		func(destNets []int, source int, sameProtocol bool) bool {
			store := buildPropStore(nil, destNets)
			store.ExposeService("dest", "modbus", 502)

			protocol := "modbus"
			if !sameProtocol {
				protocol = "dnp3"
			}
			got := store.CanReach(propNetworks[source], "dest", protocol, 502)

			member := false
			for _, network := range store.DeviceNetworks("dest") {
				if network == propNetworks[source] {
					member = true
				}
			}
			want := member && sameProtocol
			return got == want
		},
		gen.SliceOf(netIndex),
		netIndex,
		gen.Bool(),
	))

	// Property 3: CanReachFromDevice is the union over the source's networks
	properties.Property("device reachability is the union of its networks", prop.ForAll(
		func(srcNets, destNets []int) bool {
			store := buildPropStore(srcNets, destNets)
			store.ExposeService("dest", "modbus", 502)

			got := store.CanReachFromDevice("src", "dest", "modbus", 502)

			want := false
			for _, network := range store.DeviceNetworks("src") {
				if store.CanReach(network, "dest", "modbus", 502) {
					want = true
				}
			}
			return got == want
		},
		gen.SliceOf(netIndex),
		gen.SliceOf(netIndex),
	))

	// Property 4: unexposing restores unreachability
	properties.Property("unexpose restores deny", prop.ForAll(
		func(destNets []int, source int) bool {
			store := buildPropStore(nil, destNets)
			store.ExposeService("dest", "modbus", 502)
			store.UnexposeService("dest", 502)
			return !store.CanReach(propNetworks[source], "dest", "modbus", 502)
		},
		gen.SliceOf(netIndex),
		netIndex,
	))

	properties.TestingRun(t)
}
