// Package avalanchego renders the node launch configuration and
// probes node health over the local HTTP API.
package avalanchego

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyuho/avalanche-ops/internal/spec"
)

// Default on-host paths used by the bootstrap agent.
const (
	DefaultBinPath     = "/usr/local/bin/avalanchego"
	DefaultDataDir     = "/avalanche-data"
	DefaultGenesisPath = "/etc/avalanche.genesis.json"
	DefaultTLSKeyPath  = "/etc/pki/tls/certs/avalanched.pki.key"
	DefaultTLSCertPath = "/etc/pki/tls/certs/avalanched.pki.crt"
	DefaultPluginDir   = "/usr/local/bin/avalanchego-plugins"
	DefaultLogDir      = "/var/log/avalanchego"
)

// LaunchConfig collects everything needed to render the node command
// line.
type LaunchConfig struct {
	BinPath     string
	DataDir     string
	GenesisPath string
	TLSKeyPath  string
	TLSCertPath string
	PluginDir   string
	LogDir      string

	PublicIP string

	// BootstrapIPs and BootstrapIDs are parallel lists of anchor
	// "ip:port" endpoints and their node IDs. Empty on anchors and on
	// public networks, where the node discovers peers itself.
	BootstrapIPs []string
	BootstrapIDs []string
}

// NewLaunchConfig returns a LaunchConfig with the default on-host
// paths filled in.
func NewLaunchConfig() LaunchConfig {
	return LaunchConfig{
		BinPath:     DefaultBinPath,
		DataDir:     DefaultDataDir,
		GenesisPath: DefaultGenesisPath,
		TLSKeyPath:  DefaultTLSKeyPath,
		TLSCertPath: DefaultTLSCertPath,
		PluginDir:   DefaultPluginDir,
		LogDir:      DefaultLogDir,
	}
}

// Args renders the avalanchego argument list for the given cluster
// spec. Flags are emitted in a deterministic order so the rendered
// systemd unit is stable across agent restarts.
func (c LaunchConfig) Args(s *spec.Spec) []string {
	flags := map[string]string{
		"network-id":            s.NetworkName,
		"db-dir":                c.DataDir,
		"plugin-dir":            c.PluginDir,
		"log-dir":               c.LogDir,
		"log-level":             s.NodeLogLevel,
		"http-host":             "0.0.0.0",
		"http-port":             fmt.Sprintf("%d", s.HTTPPort),
		"staking-port":          fmt.Sprintf("%d", s.StakingPort),
		"staking-tls-key-file":  c.TLSKeyPath,
		"staking-tls-cert-file": c.TLSCertPath,
		"snow-sample-size":      fmt.Sprintf("%d", s.SnowSampleSize),
		"snow-quorum-size":      fmt.Sprintf("%d", s.SnowQuorumSize),
	}
	if c.PublicIP != "" {
		flags["public-ip"] = c.PublicIP
	}
	if s.IsCustomNetwork() {
		flags["genesis"] = c.GenesisPath
	}
	if len(c.BootstrapIPs) > 0 {
		flags["bootstrap-ips"] = strings.Join(c.BootstrapIPs, ",")
		flags["bootstrap-ids"] = strings.Join(c.BootstrapIDs, ",")
	}

	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		args = append(args, fmt.Sprintf("--%s=%s", name, flags[name]))
	}
	return args
}

// Command renders the full launch command line.
func (c LaunchConfig) Command(s *spec.Spec) string {
	return c.BinPath + " " + strings.Join(c.Args(s), " ")
}
