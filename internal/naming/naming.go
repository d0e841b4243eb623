// Package naming maps (cluster id, resource kind) to deterministic
// CloudFormation stack names and S3 key paths.
//
// The produced names are the join keys between the orchestrator's
// bookkeeping and objects written by independently-running node agents,
// so every function here must stay pure and stable across runs. No two
// kinds may map to overlapping prefixes; the rendezvous protocol trusts
// prefix exclusivity for its cardinality counts.
package naming

import (
	"fmt"
	"strings"
)

// StackKind identifies an orchestrator-owned CloudFormation stack.
type StackKind int

const (
	StackEC2InstanceRole StackKind = iota
	StackVPC
	StackASGAnchorNodes
	StackASGNonAnchorNodes
)

var stackSuffixes = map[StackKind]string{
	StackEC2InstanceRole:   "ec2-instance-role",
	StackVPC:               "vpc",
	StackASGAnchorNodes:    "asg-anchor-nodes",
	StackASGNonAnchorNodes: "asg-non-anchor-nodes",
}

func (k StackKind) String() string {
	if s, ok := stackSuffixes[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown-stack-kind-%d", int(k))
}

// StackName encodes a cluster id and stack kind into a stack name.
func StackName(id string, kind StackKind) string {
	return fmt.Sprintf("%s-%s", id, kind)
}

// ParseStackName is the inverse of StackName.
func ParseStackName(name string) (id string, kind StackKind, err error) {
	for k, suffix := range stackSuffixes {
		if strings.HasSuffix(name, "-"+suffix) {
			return strings.TrimSuffix(name, "-"+suffix), k, nil
		}
	}
	return "", 0, &UnknownKindError{Value: name}
}

// NodeKind is the role assigned to a node at launch.
type NodeKind int

const (
	// KindAnchor nodes publish their network identity first; all other
	// nodes bootstrap against them.
	KindAnchor NodeKind = iota
	KindNonAnchor
)

func (k NodeKind) String() string {
	switch k {
	case KindAnchor:
		return "anchor"
	case KindNonAnchor:
		return "non-anchor"
	}
	return fmt.Sprintf("unknown-node-kind-%d", int(k))
}

// ParseNodeKind decodes a NODE_KIND tag value.
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "anchor":
		return KindAnchor, nil
	case "non-anchor", "non_anchor":
		return KindNonAnchor, nil
	}
	return 0, &UnknownKindError{Value: s}
}

// UnknownKindError is returned when a string-valued kind tag does not
// decode to any known variant.
type UnknownKindError struct {
	Value string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown kind %q", e.Value)
}

// S3 key layout, all namespaced under the cluster id.

// ConfigFile is the mirrored copy of the cluster spec.
func ConfigFile(id string) string {
	return fmt.Sprintf("%s/config.yaml", id)
}

// AgentBin is the uploaded avalanched binary (not compressed).
func AgentBin(id string) string {
	return fmt.Sprintf("%s/install/avalanched", id)
}

// NodeBinCompressed is the zstd-compressed avalanchego binary.
func NodeBinCompressed(id string) string {
	return fmt.Sprintf("%s/install/avalanchego.zstd", id)
}

// PluginsPrefix is the prefix under which compressed plugin binaries live.
func PluginsPrefix(id string) string {
	return fmt.Sprintf("%s/install/plugins/", id)
}

// PluginCompressed is the key for one zstd-compressed plugin binary.
func PluginCompressed(id, name string) string {
	return PluginsPrefix(id) + name + ".zstd"
}

// GenesisFile is the shared genesis for custom networks.
func GenesisFile(id string) string {
	return fmt.Sprintf("%s/genesis.json", id)
}

// PKIKey is the envelope-encrypted staking TLS key for one instance.
func PKIKey(id, instanceID string) string {
	return fmt.Sprintf("%s/pki/%s.key.zstd.encrypted", id, instanceID)
}

// AccessKeyCompressedEncrypted is the envelope-encrypted SSH access key
// shared across the fleet.
func AccessKeyCompressedEncrypted(id string) string {
	return fmt.Sprintf("%s/ec2-access.key.zstd.encrypted", id)
}

// MailboxPrefix is the role-scoped rendezvous prefix. Agents write one
// marker object under it; the orchestrator polls its cardinality.
func MailboxPrefix(id string, kind NodeKind) string {
	return fmt.Sprintf("%s/discover/ready/%s/", id, kind)
}

// MarkerKey encodes a booted node's identity into its readiness marker
// key so observers can reconstruct the node from the listed path alone.
func MarkerKey(id string, kind NodeKind, instanceID, ip, nodeID string) string {
	return MailboxPrefix(id, kind) + fmt.Sprintf("%s_%s_%s", instanceID, ip, nodeID)
}

// ParseMarkerKey is the inverse of MarkerKey.
func ParseMarkerKey(key string) (id string, kind NodeKind, instanceID, ip, nodeID string, err error) {
	for _, k := range []NodeKind{KindAnchor, KindNonAnchor} {
		marker := fmt.Sprintf("/discover/ready/%s/", k)
		i := strings.Index(key, marker)
		if i < 0 {
			continue
		}
		id = key[:i]
		rest := key[i+len(marker):]
		fields := strings.Split(rest, "_")
		if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
			return "", 0, "", "", "", fmt.Errorf("malformed marker key %q", key)
		}
		return id, k, fields[0], fields[1], fields[2], nil
	}
	return "", 0, "", "", "", fmt.Errorf("key %q is not under a rendezvous mailbox", key)
}
