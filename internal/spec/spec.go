// Package spec defines the cluster specification document.
//
// The spec file is the single durable checkpoint of the orchestrator: it
// records both the desired state (network parameters, machine counts,
// install artifacts) and the observed provisioning state (the Resources
// record). It is persisted after every state-mutating phase and mirrored
// to S3 once the bucket exists, so a crashed apply can resume from the
// last completed phase.
package spec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Consensus and port defaults, kept in sync with avalanchego's flag
// defaults.
const (
	DefaultSnowSampleSize = 20
	DefaultSnowQuorumSize = 15
	DefaultHTTPPort       = 9650
	DefaultStakingPort    = 9651

	DefaultAnchorNodes    = 3
	DefaultNonAnchorNodes = 2
	DefaultKeysToGenerate = 5

	MinAnchorNodes    = 1
	MaxAnchorNodes    = 10
	MinNonAnchorNodes = 1
	MaxNonAnchorNodes = 20

	DefaultNodeLogLevel = "INFO"
	DefaultRegion       = "us-west-2"
)

// MainnetNetworkName is the only reference network this tooling supports;
// everything else must be a custom network name.
const MainnetNetworkName = "mainnet"

// reservedNetworkNames are named public test networks this tooling does
// not provision.
var reservedNetworkNames = map[string]bool{
	"cascade": true,
	"denali":  true,
	"everest": true,
	"fuji":    true,
	"testnet": true,
	"testing": true,
	"local":   true,
}

// Spec is the root cluster document.
type Spec struct {
	// ID is the opaque cluster identifier, generated once and immutable.
	ID string `yaml:"id"`

	// NetworkName is either "mainnet" or a custom network name.
	NetworkName string `yaml:"network_name"`

	SnowSampleSize int `yaml:"snow_sample_size,omitempty"`
	SnowQuorumSize int `yaml:"snow_quorum_size,omitempty"`

	HTTPPort    int `yaml:"http_port,omitempty"`
	StakingPort int `yaml:"staking_port,omitempty"`

	// NodeLogLevel is passed through to the avalanchego process.
	NodeLogLevel string `yaml:"node_log_level,omitempty"`

	// KeysToGenerate is the size of the pre-funded test key pool used by
	// the load generator against custom networks.
	KeysToGenerate int `yaml:"keys_to_generate,omitempty"`

	InstallArtifacts InstallArtifacts `yaml:"install_artifacts"`
	Machine          Machine          `yaml:"machine"`
	Resources        Resources        `yaml:"resources"`
}

// InstallArtifacts are local paths shared with remote machines via S3.
type InstallArtifacts struct {
	// GenesisFile must be set for custom networks and empty for mainnet.
	GenesisFile string `yaml:"genesis_file,omitempty"`

	// AvalanchedBin is the agent binary, uploaded uncompressed.
	AvalanchedBin string `yaml:"avalanched_bin"`

	// AvalanchegoBin is the node binary, compressed before upload.
	AvalanchegoBin string `yaml:"avalanchego_bin"`

	// PluginsDir holds plugin binaries, each compressed before upload.
	PluginsDir string `yaml:"plugins_dir,omitempty"`
}

// Machine describes the desired fleet shape.
type Machine struct {
	AnchorNodes    int      `yaml:"anchor_nodes"`
	NonAnchorNodes int      `yaml:"non_anchor_nodes"`
	InstanceTypes  []string `yaml:"instance_types,omitempty"`
}

// Identity pins the AWS caller recorded at first apply. Later invocations
// refuse to run under a different caller.
type Identity struct {
	AccountID string `yaml:"account_id"`
	RoleARN   string `yaml:"role_arn"`
	UserID    string `yaml:"user_id"`
}

// Resources is the mutable provisioning record. Every field starts unset
// and transitions to set exactly once, on successful completion of its
// provisioning step; a set field is never overwritten by a later run.
// Re-running apply against a partially-populated record only performs the
// remaining unset steps.
type Resources struct {
	Region string `yaml:"region"`

	S3Bucket string `yaml:"s3_bucket"`
	// S3BucketDBBackup, when set, receives database backups and is never
	// deleted, not even by delete --delete-all.
	S3BucketDBBackup string `yaml:"s3_bucket_db_backup,omitempty"`

	Identity *Identity `yaml:"identity,omitempty"`

	KMSKeyID  string `yaml:"kms_key_id,omitempty"`
	KMSKeyARN string `yaml:"kms_key_arn,omitempty"`

	EC2KeyName string `yaml:"ec2_key_name,omitempty"`
	EC2KeyPath string `yaml:"ec2_key_path,omitempty"`

	CloudFormationEC2InstanceRole string `yaml:"cloudformation_ec2_instance_role,omitempty"`
	EC2InstanceProfileARN         string `yaml:"ec2_instance_profile_arn,omitempty"`

	CloudFormationVPC string   `yaml:"cloudformation_vpc,omitempty"`
	VPCID             string   `yaml:"vpc_id,omitempty"`
	SecurityGroupID   string   `yaml:"security_group_id,omitempty"`
	PublicSubnetIDs   []string `yaml:"public_subnet_ids,omitempty"`

	CloudFormationASGAnchorNodes string `yaml:"cloudformation_asg_anchor_nodes,omitempty"`
	ASGAnchorNodesLogicalID      string `yaml:"asg_anchor_nodes_logical_id,omitempty"`

	CloudFormationASGNonAnchorNodes string `yaml:"cloudformation_asg_non_anchor_nodes,omitempty"`
	ASGNonAnchorNodesLogicalID      string `yaml:"asg_non_anchor_nodes_logical_id,omitempty"`

	NLBARN            string `yaml:"nlb_arn,omitempty"`
	NLBTargetGroupARN string `yaml:"nlb_target_group_arn,omitempty"`
	NLBDNSName        string `yaml:"nlb_dns_name,omitempty"`
}

// DefaultOptions parameterize Default.
type DefaultOptions struct {
	NetworkName    string
	AvalanchedBin  string
	AvalanchegoBin string
	PluginsDir     string
	GenesisFile    string
	KeysToGenerate int
	NodeLogLevel   string
}

// Default creates a new Spec with a freshly generated cluster id and the
// default machine shape for the given network.
func Default(opts DefaultOptions) *Spec {
	anchorNodes := DefaultAnchorNodes
	if opts.NetworkName == MainnetNetworkName {
		anchorNodes = 0
	}

	keys := opts.KeysToGenerate
	if keys == 0 {
		keys = DefaultKeysToGenerate
	}
	logLevel := opts.NodeLogLevel
	if logLevel == "" {
		logLevel = DefaultNodeLogLevel
	}

	now := time.Now().UTC()
	return &Spec{
		ID: fmt.Sprintf("avalanche-ops-%s-%s", now.Format("200601"), uuid.NewString()[:8]),

		NetworkName: opts.NetworkName,

		SnowSampleSize: DefaultSnowSampleSize,
		SnowQuorumSize: DefaultSnowQuorumSize,

		HTTPPort:    DefaultHTTPPort,
		StakingPort: DefaultStakingPort,

		NodeLogLevel:   logLevel,
		KeysToGenerate: keys,

		InstallArtifacts: InstallArtifacts{
			GenesisFile:    opts.GenesisFile,
			AvalanchedBin:  opts.AvalanchedBin,
			AvalanchegoBin: opts.AvalanchegoBin,
			PluginsDir:     opts.PluginsDir,
		},

		Machine: Machine{
			AnchorNodes:    anchorNodes,
			NonAnchorNodes: DefaultNonAnchorNodes,
			InstanceTypes:  []string{"m5.large", "c5.large", "r5.large", "t3.large"},
		},

		Resources: Resources{
			Region:   DefaultRegion,
			S3Bucket: fmt.Sprintf("avalanche-ops-%s", now.Format("20060102")),
		},
	}
}

// IsMainnet reports whether the spec targets the reference network.
func (s *Spec) IsMainnet() bool {
	return s.NetworkName == MainnetNetworkName
}

// IsCustomNetwork reports whether the spec targets a user-named network.
func (s *Spec) IsCustomNetwork() bool {
	return !s.IsMainnet()
}

// ValidationError reports a malformed spec. It is surfaced to the user
// before any cloud call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid spec: %s %s", e.Field, e.Reason)
}

// Validate checks the spec for configuration errors.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Reason: "cannot be empty"}
	}
	if s.NetworkName == "" {
		return &ValidationError{Field: "network_name", Reason: "cannot be empty"}
	}
	if reservedNetworkNames[s.NetworkName] {
		return &ValidationError{
			Field:  "network_name",
			Reason: fmt.Sprintf("%q is not supported by this tooling", s.NetworkName),
		}
	}
	if s.Resources.Region == "" {
		return &ValidationError{Field: "resources.region", Reason: "cannot be empty"}
	}

	if s.IsMainnet() {
		if s.Machine.AnchorNodes > 0 {
			return &ValidationError{Field: "machine.anchor_nodes", Reason: "must be zero for mainnet"}
		}
		if s.InstallArtifacts.GenesisFile != "" {
			return &ValidationError{Field: "install_artifacts.genesis_file", Reason: "must be empty for mainnet"}
		}
	} else {
		if s.InstallArtifacts.GenesisFile == "" {
			return &ValidationError{Field: "install_artifacts.genesis_file", Reason: "required for custom networks"}
		}
		if s.Machine.AnchorNodes < MinAnchorNodes || s.Machine.AnchorNodes > MaxAnchorNodes {
			return &ValidationError{
				Field:  "machine.anchor_nodes",
				Reason: fmt.Sprintf("%d outside [%d,%d]", s.Machine.AnchorNodes, MinAnchorNodes, MaxAnchorNodes),
			}
		}
	}

	if s.Machine.NonAnchorNodes < MinNonAnchorNodes || s.Machine.NonAnchorNodes > MaxNonAnchorNodes {
		return &ValidationError{
			Field:  "machine.non_anchor_nodes",
			Reason: fmt.Sprintf("%d outside [%d,%d]", s.Machine.NonAnchorNodes, MinNonAnchorNodes, MaxNonAnchorNodes),
		}
	}

	for _, check := range []struct {
		field string
		path  string
	}{
		{"install_artifacts.avalanched_bin", s.InstallArtifacts.AvalanchedBin},
		{"install_artifacts.avalanchego_bin", s.InstallArtifacts.AvalanchegoBin},
		{"install_artifacts.plugins_dir", s.InstallArtifacts.PluginsDir},
		{"install_artifacts.genesis_file", s.InstallArtifacts.GenesisFile},
	} {
		if check.path == "" {
			continue
		}
		if _, err := os.Stat(check.path); err != nil {
			return &ValidationError{Field: check.field, Reason: fmt.Sprintf("%s does not exist", check.path)}
		}
	}

	return nil
}

// Load reads and decodes a spec file. The caller is expected to Validate
// the result before acting on it.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("spec file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read spec file %s: %w", path, err)
	}

	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode spec file %s: %w", path, err)
	}
	return &s, nil
}

// Bytes serializes s to YAML.
func (s *Spec) Bytes() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec: %w", err)
	}
	return data, nil
}

// Persist atomically overwrites the spec file. Cloud mirroring is the
// caller's concern; Persist only touches local disk.
func (s *Spec) Persist(path string) error {
	data, err := s.Bytes()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".spec-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp spec file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write spec: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp spec file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace spec file %s: %w", path, err)
	}
	return nil
}

// AccessKeyPath derives the generated SSH key location from the spec file
// path: same directory, same base name, "-ec2-access.key" suffix.
func AccessKeyPath(specPath string) string {
	base := strings.TrimSuffix(filepath.Base(specPath), filepath.Ext(specPath))
	return filepath.Join(filepath.Dir(specPath), base+"-ec2-access.key")
}
