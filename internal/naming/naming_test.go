package naming

import (
	"errors"
	"testing"
)

func TestStackNames(t *testing.T) {
	id := "aops-20230815"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "EC2InstanceRole",
			got:      StackName(id, StackEC2InstanceRole),
			expected: "aops-20230815-ec2-instance-role",
		},
		{
			name:     "VPC",
			got:      StackName(id, StackVPC),
			expected: "aops-20230815-vpc",
		},
		{
			name:     "ASGAnchorNodes",
			got:      StackName(id, StackASGAnchorNodes),
			expected: "aops-20230815-asg-anchor-nodes",
		},
		{
			name:     "ASGNonAnchorNodes",
			got:      StackName(id, StackASGNonAnchorNodes),
			expected: "aops-20230815-asg-non-anchor-nodes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, expected %q", tt.got, tt.expected)
			}
		})
	}
}

func TestParseStackNameRoundTrip(t *testing.T) {
	for _, kind := range []StackKind{StackEC2InstanceRole, StackVPC, StackASGAnchorNodes, StackASGNonAnchorNodes} {
		name := StackName("my-cluster", kind)
		id, parsed, err := ParseStackName(name)
		if err != nil {
			t.Fatalf("ParseStackName(%q): %v", name, err)
		}
		if id != "my-cluster" || parsed != kind {
			t.Errorf("ParseStackName(%q) = (%q, %v), expected (my-cluster, %v)", name, id, parsed, kind)
		}
	}

	if _, _, err := ParseStackName("something-else"); err == nil {
		t.Error("expected error for unknown stack name")
	}
}

func TestKeyPaths(t *testing.T) {
	id := "aops-xyz"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ConfigFile", ConfigFile(id), "aops-xyz/config.yaml"},
		{"AgentBin", AgentBin(id), "aops-xyz/install/avalanched"},
		{"NodeBinCompressed", NodeBinCompressed(id), "aops-xyz/install/avalanchego.zstd"},
		{"PluginCompressed", PluginCompressed(id, "evm"), "aops-xyz/install/plugins/evm.zstd"},
		{"GenesisFile", GenesisFile(id), "aops-xyz/genesis.json"},
		{"PKIKey", PKIKey(id, "i-0abc"), "aops-xyz/pki/i-0abc.key.zstd.encrypted"},
		{"AnchorMailbox", MailboxPrefix(id, KindAnchor), "aops-xyz/discover/ready/anchor/"},
		{"NonAnchorMailbox", MailboxPrefix(id, KindNonAnchor), "aops-xyz/discover/ready/non-anchor/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, expected %q", tt.got, tt.expected)
			}
		})
	}
}

func TestMailboxPrefixesDisjoint(t *testing.T) {
	// Different cluster ids or roles must never share a prefix.
	a := MailboxPrefix("cluster-a", KindAnchor)
	b := MailboxPrefix("cluster-b", KindAnchor)
	if a == b {
		t.Fatalf("prefixes collide: %q", a)
	}

	anchor := MailboxPrefix("c", KindAnchor)
	nonAnchor := MailboxPrefix("c", KindNonAnchor)
	if anchor == nonAnchor {
		t.Fatalf("role prefixes collide: %q", anchor)
	}
	if len(anchor) <= len(nonAnchor) && nonAnchor[:len(anchor)] == anchor {
		t.Errorf("anchor prefix %q is a prefix of %q", anchor, nonAnchor)
	}
}

func TestMarkerKeyRoundTrip(t *testing.T) {
	key := MarkerKey("aops-xyz", KindAnchor, "i-0abc123", "1.2.3.4", "NodeID-7Xhw2mDxuDS44j42TCB6U5579esbSt3Lg")
	expected := "aops-xyz/discover/ready/anchor/i-0abc123_1.2.3.4_NodeID-7Xhw2mDxuDS44j42TCB6U5579esbSt3Lg"
	if key != expected {
		t.Fatalf("got %q, expected %q", key, expected)
	}

	id, kind, instanceID, ip, nodeID, err := ParseMarkerKey(key)
	if err != nil {
		t.Fatalf("ParseMarkerKey: %v", err)
	}
	if id != "aops-xyz" || kind != KindAnchor || instanceID != "i-0abc123" || ip != "1.2.3.4" ||
		nodeID != "NodeID-7Xhw2mDxuDS44j42TCB6U5579esbSt3Lg" {
		t.Errorf("unexpected parse result: %q %v %q %q %q", id, kind, instanceID, ip, nodeID)
	}
}

func TestParseMarkerKeyErrors(t *testing.T) {
	tests := []string{
		"aops-xyz/config.yaml",
		"aops-xyz/discover/ready/anchor/only-two_fields",
		"aops-xyz/discover/ready/anchor/_1.2.3.4_NodeID-x",
	}
	for _, key := range tests {
		if _, _, _, _, _, err := ParseMarkerKey(key); err == nil {
			t.Errorf("expected error for %q", key)
		}
	}
}

func TestParseNodeKind(t *testing.T) {
	for s, expected := range map[string]NodeKind{
		"anchor":     KindAnchor,
		"non-anchor": KindNonAnchor,
		"non_anchor": KindNonAnchor,
	} {
		kind, err := ParseNodeKind(s)
		if err != nil {
			t.Fatalf("ParseNodeKind(%q): %v", s, err)
		}
		if kind != expected {
			t.Errorf("ParseNodeKind(%q) = %v, expected %v", s, kind, expected)
		}
	}

	_, err := ParseNodeKind("beacon")
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	var unknown *UnknownKindError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError, got %T", err)
	}
	if unknown.Value != "beacon" {
		t.Errorf("unexpected value %q", unknown.Value)
	}
}
