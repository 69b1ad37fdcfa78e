package gateway

import "testing"

func TestStaticClassifierRules(t *testing.T) {
	c := NewStaticClassifier("internet")
	if err := c.AddRule("10.0.2.0/24", "control_net"); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}
	if err := c.AddRule("10.0.0.0/16", "corp_net"); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}

	tests := []struct {
		name string
		peer string
		want string
	}{
		{"first match wins", "10.0.2.15:42312", "control_net"},
		{"wider prefix later", "10.0.9.1:1024", "corp_net"},
		{"no match falls back", "192.168.1.5:5000", "internet"},
		{"bare host without port", "10.0.2.1", "control_net"},
		{"ipv4 mapped ipv6", "[::ffff:10.0.2.7]:9999", "control_net"},
		{"unparseable peer", "not-an-address", "internet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.peer); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.peer, got, tt.want)
			}
		})
	}
}

func TestStaticClassifierRejectsBadInput(t *testing.T) {
	c := NewStaticClassifier("")
	if c.DefaultNetworkName() != DefaultNetwork {
		t.Errorf("empty default = %q, want %q", c.DefaultNetworkName(), DefaultNetwork)
	}
	if err := c.AddRule("not-a-cidr", "control_net"); err == nil {
		t.Error("expected error for invalid CIDR")
	}
	if err := c.AddRule("10.0.0.0/8", ""); err == nil {
		t.Error("expected error for empty network name")
	}
}

func TestFixedClassifier(t *testing.T) {
	c := FixedClassifier("ops_net")
	if got := c.Classify("203.0.113.50:8080"); got != "ops_net" {
		t.Errorf("Classify() = %q, want ops_net", got)
	}
}
