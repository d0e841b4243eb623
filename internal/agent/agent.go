// Package agent implements the on-host bootstrap daemon. It runs from
// cloud-init on every node, discovers its configuration from instance
// tags, pulls artifacts from the cluster bucket, starts the node
// service, and announces readiness through the discovery mailbox.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gyuho/avalanche-ops/internal/avalanchego"
	"github.com/gyuho/avalanche-ops/internal/compress"
	"github.com/gyuho/avalanche-ops/internal/envelope"
	"github.com/gyuho/avalanche-ops/internal/naming"
	"github.com/gyuho/avalanche-ops/internal/pki"
	"github.com/gyuho/avalanche-ops/internal/platform/ec2"
	"github.com/gyuho/avalanche-ops/internal/rendezvous"
	"github.com/gyuho/avalanche-ops/internal/spec"
)

// DefaultPublishInterval is how often the steady-state loop republishes
// the readiness marker.
const DefaultPublishInterval = 30 * time.Second

// DefaultPeerWaitTimeout bounds the non-anchor wait for anchor peers.
const DefaultPeerWaitTimeout = 20 * time.Minute

// ObjectStore is the S3 surface the agent needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// TagService reads instance tags.
type TagService interface {
	FetchTags(ctx context.Context, instanceID string) (map[string]string, error)
}

// ServiceManager installs and starts the rendered node service.
type ServiceManager interface {
	Install(unitName, unit string) error
}

// Agent bootstraps one node.
type Agent struct {
	Logger   *slog.Logger
	Metadata ec2.Metadata

	Store   ObjectStore
	Tags    TagService
	Keys    envelope.KeyService
	Service ServiceManager
	Health  *avalanchego.HealthClient
	Metrics *Metrics

	// Launch holds the on-host paths; zero value means defaults.
	Launch avalanchego.LaunchConfig

	PublishInterval time.Duration
	PeerWaitTimeout time.Duration
	PeerWaitPoll    time.Duration

	tags *Tags
	spec *spec.Spec
	node rendezvous.Node
}

func (a *Agent) publishInterval() time.Duration {
	if a.PublishInterval > 0 {
		return a.PublishInterval
	}
	return DefaultPublishInterval
}

func (a *Agent) peerWaitTimeout() time.Duration {
	if a.PeerWaitTimeout > 0 {
		return a.PeerWaitTimeout
	}
	return DefaultPeerWaitTimeout
}

func (a *Agent) peerWaitPoll() time.Duration {
	if a.PeerWaitPoll > 0 {
		return a.PeerWaitPoll
	}
	return DefaultPublishInterval
}

// Bootstrap brings the node from a bare machine to a running,
// announced validator.
func (a *Agent) Bootstrap(ctx context.Context) error {
	if a.Launch.BinPath == "" {
		a.Launch = avalanchego.NewLaunchConfig()
	}
	a.Launch.PublicIP = a.Metadata.PublicIPv4

	if err := a.readTags(ctx); err != nil {
		return err
	}
	if err := a.fetchSpec(ctx); err != nil {
		return err
	}
	if err := a.ensureNodeIdentity(ctx); err != nil {
		return err
	}
	if err := a.ensureArtifacts(ctx); err != nil {
		return err
	}
	if err := a.resolvePeers(ctx); err != nil {
		return err
	}
	if err := a.installService(); err != nil {
		return err
	}
	if err := rendezvous.Publish(ctx, a.Store, a.tags.S3BucketName, a.tags.ID, a.node); err != nil {
		return err
	}
	if a.Metrics != nil {
		a.Metrics.BootstrapsCompleted.Inc()
	}
	a.Logger.Info("bootstrap complete",
		slog.String("node_id", a.node.NodeID),
		slog.String("kind", a.node.Kind.String()))
	return nil
}

// RunSteadyState republishes the readiness marker and records health
// until the context is cancelled. Individual failures are logged and
// retried on the next tick; a ready node never exits over a transient
// cloud error.
func (a *Agent) RunSteadyState(ctx context.Context) error {
	ticker := time.NewTicker(a.publishInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := rendezvous.Publish(ctx, a.Store, a.tags.S3BucketName, a.tags.ID, a.node); err != nil {
			a.Logger.Warn("failed to republish readiness marker", slog.String("error", err.Error()))
			if a.Metrics != nil {
				a.Metrics.PublishFailures.Inc()
			}
		}

		if a.Health != nil {
			baseURL := fmt.Sprintf("http://127.0.0.1:%d", a.spec.HTTPPort)
			if err := a.Health.CheckLiveness(ctx, baseURL); err != nil {
				a.Logger.Warn("node liveness check failed", slog.String("error", err.Error()))
				if a.Metrics != nil {
					a.Metrics.LivenessFailures.Inc()
				}
			}
		}
	}
}

func (a *Agent) readTags(ctx context.Context) error {
	raw, err := a.Tags.FetchTags(ctx, a.Metadata.InstanceID)
	if err != nil {
		return err
	}
	tags, err := ParseTags(raw)
	if err != nil {
		return err
	}
	a.tags = tags
	return nil
}

func (a *Agent) fetchSpec(ctx context.Context) error {
	data, err := a.Store.GetObject(ctx, a.tags.S3BucketName, naming.ConfigFile(a.tags.ID))
	if err != nil {
		return fmt.Errorf("failed to fetch cluster config: %w", err)
	}
	var s spec.Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode cluster config: %w", err)
	}
	a.spec = &s
	return nil
}

// ensureNodeIdentity creates the staking TLS identity if this is the
// node's first boot and backs the key up sealed under the cluster KMS
// key so the node id survives instance replacement.
func (a *Agent) ensureNodeIdentity(ctx context.Context) error {
	created, err := pki.EnsureIdentity(a.Launch.TLSKeyPath, a.Launch.TLSCertPath)
	if err != nil {
		return err
	}
	nodeID, err := pki.NodeIDFromCert(a.Launch.TLSCertPath)
	if err != nil {
		return err
	}
	a.node = rendezvous.Node{
		InstanceID: a.Metadata.InstanceID,
		IP:         a.Metadata.PublicIPv4,
		NodeID:     nodeID,
		Kind:       a.tags.NodeKind,
	}

	if !created {
		return nil
	}
	keyBytes, err := os.ReadFile(a.Launch.TLSKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read staking key: %w", err)
	}
	sealed, err := envelope.Seal(ctx, a.Keys, a.tags.KMSKeyARN, keyBytes)
	if err != nil {
		return err
	}
	key := naming.PKIKey(a.tags.ID, a.Metadata.InstanceID)
	if err := a.Store.PutObject(ctx, a.tags.S3BucketName, key, sealed); err != nil {
		return fmt.Errorf("failed to back up staking key: %w", err)
	}
	return nil
}

// ensureArtifacts downloads the node binary, plugins, and genesis,
// skipping anything already installed from a previous boot.
func (a *Agent) ensureArtifacts(ctx context.Context) error {
	if err := a.ensureCompressedBinary(ctx, naming.NodeBinCompressed(a.tags.ID), a.Launch.BinPath); err != nil {
		return err
	}

	pluginKeys, err := a.Store.ListObjects(ctx, a.tags.S3BucketName, naming.PluginsPrefix(a.tags.ID))
	if err != nil {
		return fmt.Errorf("failed to list plugins: %w", err)
	}
	for _, key := range pluginKeys {
		name := filepath.Base(key)
		if err := a.ensureCompressedBinary(ctx, key, filepath.Join(a.Launch.PluginDir, name)); err != nil {
			return err
		}
	}

	if a.spec.IsCustomNetwork() {
		if _, err := os.Stat(a.Launch.GenesisPath); err == nil {
			return nil
		}
		data, err := a.Store.GetObject(ctx, a.tags.S3BucketName, naming.GenesisFile(a.tags.ID))
		if err != nil {
			return fmt.Errorf("failed to fetch genesis: %w", err)
		}
		if err := os.WriteFile(a.Launch.GenesisPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write genesis: %w", err)
		}
	}
	return nil
}

func (a *Agent) ensureCompressedBinary(ctx context.Context, key, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	packed, err := a.Store.GetObject(ctx, a.tags.S3BucketName, key)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	data, err := compress.Unpack(packed)
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o755); err != nil {
		return fmt.Errorf("failed to install %s: %w", dst, err)
	}
	return nil
}

// resolvePeers waits for the anchor fleet and wires its endpoints into
// the launch config. Anchors and mainnet nodes bootstrap without
// explicit peers.
func (a *Agent) resolvePeers(ctx context.Context) error {
	if !a.spec.IsCustomNetwork() || a.tags.NodeKind != naming.KindNonAnchor {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.peerWaitTimeout())
	defer cancel()
	anchors, err := rendezvous.AwaitReady(waitCtx, a.Store, a.tags.S3BucketName, a.tags.ID,
		naming.KindAnchor, a.spec.Machine.AnchorNodes, a.peerWaitPoll())
	if err != nil {
		return err
	}

	for _, anchor := range anchors {
		a.Launch.BootstrapIPs = append(a.Launch.BootstrapIPs, fmt.Sprintf("%s:%d", anchor.IP, a.spec.StakingPort))
		a.Launch.BootstrapIDs = append(a.Launch.BootstrapIDs, anchor.NodeID)
	}
	return nil
}

func (a *Agent) installService() error {
	unit := RenderUnit(UnitConfig{
		Description: fmt.Sprintf("avalanchego node (%s)", a.tags.ID),
		ExecStart:   a.Launch.Command(a.spec),
	})
	if err := a.Service.Install("avalanchego", unit); err != nil {
		return fmt.Errorf("failed to install node service: %w", err)
	}
	return nil
}
