// Package provisioning implements the apply and delete workflows that
// drive a cluster spec to its desired cloud state.
//
// Every phase is gated on an unset field of the spec's Resources
// record: a phase whose field is already populated is skipped, so
// re-running apply after a crash or partial failure performs only the
// remaining work. The spec file is persisted after each phase and
// mirrored to the cluster bucket once it exists.
package provisioning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/gyuho/avalanche-ops/internal/compress"
	"github.com/gyuho/avalanche-ops/internal/envelope"
	"github.com/gyuho/avalanche-ops/internal/naming"
	"github.com/gyuho/avalanche-ops/internal/platform/cloudformation"
	"github.com/gyuho/avalanche-ops/internal/rendezvous"
	"github.com/gyuho/avalanche-ops/internal/spec"
	"github.com/gyuho/avalanche-ops/internal/util/keygen"
	"github.com/gyuho/avalanche-ops/internal/util/retry"
)

// Health probe defaults.
const (
	DefaultHealthAttempts = 10
	DefaultHealthInterval = 10 * time.Second

	// DefaultRendezvousTimeout bounds the wait for each node kind to
	// publish readiness markers.
	DefaultRendezvousTimeout = 20 * time.Minute

	defaultRendezvousPoll = 30 * time.Second
)

// Applier runs the apply workflow against a validated spec.
type Applier struct {
	Spec     *spec.Spec
	SpecPath string

	Identity IdentityService
	Store    ObjectStore
	Keys     KeyManager
	Stacks   StackManager
	Machines MachineService
	Health   HealthChecker
	Observer Observer

	// StackPollInterval and RendezvousPollInterval are shortened by
	// tests; zero values fall back to production defaults.
	StackPollInterval      time.Duration
	RendezvousPollInterval time.Duration
	RendezvousTimeout      time.Duration
	HealthAttempts         int
	HealthInterval         time.Duration

	// bucketReady flips once the bucket phase has confirmed the cluster
	// bucket exists. The spec name is filled in at default-spec time,
	// so the mirror must wait for the creation, not the name.
	bucketReady bool
}

func (a *Applier) stackPollInterval() time.Duration {
	if a.StackPollInterval > 0 {
		return a.StackPollInterval
	}
	return cloudformation.PollInterval
}

func (a *Applier) rendezvousPollInterval() time.Duration {
	if a.RendezvousPollInterval > 0 {
		return a.RendezvousPollInterval
	}
	return defaultRendezvousPoll
}

func (a *Applier) rendezvousTimeout() time.Duration {
	if a.RendezvousTimeout > 0 {
		return a.RendezvousTimeout
	}
	return DefaultRendezvousTimeout
}

func (a *Applier) healthAttempts() int {
	if a.HealthAttempts > 0 {
		return a.HealthAttempts
	}
	return DefaultHealthAttempts
}

func (a *Applier) healthInterval() time.Duration {
	if a.HealthInterval > 0 {
		return a.HealthInterval
	}
	return DefaultHealthInterval
}

func (a *Applier) observer() Observer {
	if a.Observer != nil {
		return a.Observer
	}
	return NopObserver{}
}

// Run executes the apply workflow end to end and returns the ready
// nodes grouped by kind.
func (a *Applier) Run(ctx context.Context) (anchors, nonAnchors []rendezvous.Node, err error) {
	type phase struct {
		name string
		run  func(context.Context) error
	}
	phases := []phase{
		{"identity", a.ensureIdentity},
		{"bucket", a.ensureBucketAndArtifacts},
		{"kms-key", a.ensureKMSKey},
		{"ec2-key-pair", a.ensureKeyPair},
		{"ec2-instance-role", a.ensureInstanceRole},
		{"vpc", a.ensureVPC},
	}
	if a.Spec.IsCustomNetwork() {
		phases = append(phases, phase{"asg-anchor-nodes", a.ensureAnchorASG})
	}
	phases = append(phases, phase{"asg-non-anchor-nodes", a.ensureNonAnchorASG})

	obs := a.observer()
	for _, p := range phases {
		obs.Event(Event{Type: EventPhaseStarted, Phase: p.name, Message: "starting"})
		if err := p.run(ctx); err != nil {
			obs.Event(Event{Type: EventPhaseFailed, Phase: p.name, Message: err.Error()})
			return nil, nil, fmt.Errorf("%s phase failed: %w", p.name, err)
		}
		if err := a.persist(ctx); err != nil {
			return nil, nil, err
		}
		obs.Event(Event{Type: EventPhaseCompleted, Phase: p.name, Message: "completed"})
	}

	if a.Spec.IsCustomNetwork() {
		anchors, err = a.awaitReady(ctx, naming.KindAnchor, a.Spec.Machine.AnchorNodes)
		if err != nil {
			return anchors, nil, err
		}
	}
	nonAnchors, err = a.awaitReady(ctx, naming.KindNonAnchor, a.Spec.Machine.NonAnchorNodes)
	if err != nil {
		return anchors, nonAnchors, err
	}

	if err := a.verifyHealth(ctx, append(append([]rendezvous.Node{}, anchors...), nonAnchors...)); err != nil {
		return anchors, nonAnchors, err
	}
	return anchors, nonAnchors, nil
}

// persist checkpoints the spec locally and mirrors it to the cluster
// bucket once the bucket phase has created it. The mirror is best
// effort ordering wise: last writer wins.
func (a *Applier) persist(ctx context.Context) error {
	if err := a.Spec.Persist(a.SpecPath); err != nil {
		return err
	}
	if !a.bucketReady {
		return nil
	}
	data, err := a.Spec.Bytes()
	if err != nil {
		return err
	}
	key := naming.ConfigFile(a.Spec.ID)
	if err := a.Store.PutObject(ctx, a.Spec.Resources.S3Bucket, key, data); err != nil {
		return fmt.Errorf("failed to mirror spec to bucket: %w", err)
	}
	return nil
}

func (a *Applier) ensureIdentity(ctx context.Context) error {
	current, err := a.Identity.GetIdentity(ctx)
	if err != nil {
		return err
	}
	if recorded := a.Spec.Resources.Identity; recorded != nil {
		if recorded.AccountID != current.AccountID || recorded.UserID != current.UserID {
			return &IdentityMismatchError{
				Recorded: *recorded,
				Current: spec.Identity{
					AccountID: current.AccountID,
					RoleARN:   current.RoleARN,
					UserID:    current.UserID,
				},
			}
		}
		return nil
	}
	a.Spec.Resources.Identity = &spec.Identity{
		AccountID: current.AccountID,
		RoleARN:   current.RoleARN,
		UserID:    current.UserID,
	}
	return nil
}

func (a *Applier) ensureBucketAndArtifacts(ctx context.Context) error {
	bucket := a.Spec.Resources.S3Bucket
	if err := a.Store.CreateBucket(ctx, bucket); err != nil {
		return err
	}
	a.bucketReady = true
	if a.Spec.Resources.S3BucketDBBackup != "" {
		if err := a.Store.CreateBucket(ctx, a.Spec.Resources.S3BucketDBBackup); err != nil {
			return err
		}
	}

	id := a.Spec.ID
	arts := a.Spec.InstallArtifacts

	// The agent binary ships uncompressed so cloud-init can run it
	// straight off the download.
	if err := a.Store.PutFile(ctx, arts.AvalanchedBin, bucket, naming.AgentBin(id)); err != nil {
		return err
	}
	if err := a.uploadCompressed(ctx, arts.AvalanchegoBin, naming.NodeBinCompressed(id)); err != nil {
		return err
	}
	if arts.PluginsDir != "" {
		entries, err := os.ReadDir(arts.PluginsDir)
		if err != nil {
			return fmt.Errorf("failed to read plugins dir %s: %w", arts.PluginsDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			src := filepath.Join(arts.PluginsDir, entry.Name())
			if err := a.uploadCompressed(ctx, src, naming.PluginCompressed(id, entry.Name())); err != nil {
				return err
			}
		}
	}
	if a.Spec.IsCustomNetwork() {
		if err := a.Store.PutFile(ctx, arts.GenesisFile, bucket, naming.GenesisFile(id)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) uploadCompressed(ctx context.Context, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	packed, err := compress.Pack(data)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", localPath, err)
	}
	return a.Store.PutObject(ctx, a.Spec.Resources.S3Bucket, key, packed)
}

func (a *Applier) ensureKMSKey(ctx context.Context) error {
	if a.Spec.Resources.KMSKeyARN != "" {
		a.observer().Event(Event{Type: EventPhaseSkipped, Phase: "kms-key", Message: "already provisioned", Resource: a.Spec.Resources.KMSKeyARN})
		return nil
	}
	key, err := a.Keys.CreateKey(ctx, fmt.Sprintf("%s encryption key", a.Spec.ID))
	if err != nil {
		return err
	}
	a.Spec.Resources.KMSKeyID = key.ID
	a.Spec.Resources.KMSKeyARN = key.ARN
	a.observer().Event(Event{Type: EventResourceCreated, Phase: "kms-key", Message: "created", Resource: key.ARN})
	return nil
}

func (a *Applier) ensureKeyPair(ctx context.Context) error {
	if a.Spec.Resources.EC2KeyName != "" {
		a.observer().Event(Event{Type: EventPhaseSkipped, Phase: "ec2-key-pair", Message: "already provisioned", Resource: a.Spec.Resources.EC2KeyName})
		return nil
	}

	pair, err := keygen.GenerateED25519KeyPair()
	if err != nil {
		return err
	}
	keyPath := spec.AccessKeyPath(a.SpecPath)
	// A crash between writing the key and recording the key pair leaves
	// a read-only file behind; clear it so the rewrite does not fail.
	if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale access key %s: %w", keyPath, err)
	}
	if err := os.WriteFile(keyPath, pair.PrivateKey, 0o400); err != nil {
		return fmt.Errorf("failed to write access key %s: %w", keyPath, err)
	}

	keyName := fmt.Sprintf("%s-ec2-key", a.Spec.ID)
	if err := a.Machines.ImportKeyPair(ctx, keyName, pair.PublicKey); err != nil {
		return err
	}

	// Back up the private key sealed under the cluster KMS key so a
	// lost workstation does not mean lost SSH access.
	sealed, err := envelope.Seal(ctx, a.Keys, a.Spec.Resources.KMSKeyARN, pair.PrivateKey)
	if err != nil {
		return err
	}
	if err := a.Store.PutObject(ctx, a.Spec.Resources.S3Bucket, naming.AccessKeyCompressedEncrypted(a.Spec.ID), sealed); err != nil {
		return err
	}

	a.Spec.Resources.EC2KeyName = keyName
	a.Spec.Resources.EC2KeyPath = keyPath
	return nil
}

func (a *Applier) ensureInstanceRole(ctx context.Context) error {
	stackName := naming.StackName(a.Spec.ID, naming.StackEC2InstanceRole)
	if a.Spec.Resources.CloudFormationEC2InstanceRole == "" {
		params := map[string]string{
			"Id":                   a.Spec.ID,
			"KmsCmkArn":            a.Spec.Resources.KMSKeyARN,
			"S3BucketName":         a.Spec.Resources.S3Bucket,
			"S3BucketDbBackupName": a.Spec.Resources.S3BucketDBBackup,
		}
		if err := a.createStack(ctx, stackName, ec2InstanceRoleTemplate, params); err != nil {
			return err
		}
		a.Spec.Resources.CloudFormationEC2InstanceRole = stackName
	}
	if a.Spec.Resources.EC2InstanceProfileARN != "" {
		return nil
	}

	outputs, err := a.Stacks.PollStack(ctx, stackName, cfntypes.StackStatusCreateComplete, cloudformation.PollBudget(0), a.stackPollInterval())
	if err != nil {
		return err
	}
	profileARN, ok := outputs["InstanceProfileArn"]
	if !ok {
		return retry.Fatal(&MissingOutputError{StackName: stackName, OutputKey: "InstanceProfileArn"})
	}
	a.Spec.Resources.EC2InstanceProfileARN = profileARN
	return nil
}

func (a *Applier) ensureVPC(ctx context.Context) error {
	stackName := naming.StackName(a.Spec.ID, naming.StackVPC)
	if a.Spec.Resources.CloudFormationVPC == "" {
		params := map[string]string{
			"Id":          a.Spec.ID,
			"HttpPort":    strconv.Itoa(a.Spec.HTTPPort),
			"StakingPort": strconv.Itoa(a.Spec.StakingPort),
		}
		if err := a.createStack(ctx, stackName, vpcTemplate, params); err != nil {
			return err
		}
		a.Spec.Resources.CloudFormationVPC = stackName
	}
	if a.Spec.Resources.VPCID != "" {
		return nil
	}

	outputs, err := a.Stacks.PollStack(ctx, stackName, cfntypes.StackStatusCreateComplete, cloudformation.PollBudget(0), a.stackPollInterval())
	if err != nil {
		return err
	}
	for _, required := range []string{"VpcId", "SecurityGroupId", "PublicSubnetIds"} {
		if _, ok := outputs[required]; !ok {
			return retry.Fatal(&MissingOutputError{StackName: stackName, OutputKey: required})
		}
	}
	a.Spec.Resources.VPCID = outputs["VpcId"]
	a.Spec.Resources.SecurityGroupID = outputs["SecurityGroupId"]
	a.Spec.Resources.PublicSubnetIDs = strings.Split(outputs["PublicSubnetIds"], ",")
	return nil
}

func (a *Applier) ensureAnchorASG(ctx context.Context) error {
	return a.ensureASG(ctx, naming.KindAnchor, a.Spec.Machine.AnchorNodes,
		&a.Spec.Resources.CloudFormationASGAnchorNodes, &a.Spec.Resources.ASGAnchorNodesLogicalID)
}

func (a *Applier) ensureNonAnchorASG(ctx context.Context) error {
	return a.ensureASG(ctx, naming.KindNonAnchor, a.Spec.Machine.NonAnchorNodes,
		&a.Spec.Resources.CloudFormationASGNonAnchorNodes, &a.Spec.Resources.ASGNonAnchorNodesLogicalID)
}

func (a *Applier) ensureASG(ctx context.Context, kind naming.NodeKind, capacity int, stackField, logicalIDField *string) error {
	stackKind := naming.StackASGAnchorNodes
	if kind == naming.KindNonAnchor {
		stackKind = naming.StackASGNonAnchorNodes
	}
	stackName := naming.StackName(a.Spec.ID, stackKind)

	if *stackField == "" {
		params := map[string]string{
			"Id":                 a.Spec.ID,
			"NodeKind":           kind.String(),
			"KmsCmkArn":          a.Spec.Resources.KMSKeyARN,
			"S3BucketName":       a.Spec.Resources.S3Bucket,
			"Ec2KeyPairName":     a.Spec.Resources.EC2KeyName,
			"InstanceProfileArn": a.Spec.Resources.EC2InstanceProfileARN,
			"VpcId":              a.Spec.Resources.VPCID,
			"SecurityGroupId":    a.Spec.Resources.SecurityGroupID,
			"PublicSubnetIds":    strings.Join(a.Spec.Resources.PublicSubnetIDs, ","),
			"AsgDesiredCapacity": strconv.Itoa(capacity),
			"HttpPort":           strconv.Itoa(a.Spec.HTTPPort),
		}
		if len(a.Spec.Machine.InstanceTypes) > 0 {
			params["InstanceType"] = a.Spec.Machine.InstanceTypes[0]
		}
		if err := a.createStack(ctx, stackName, asgTemplate, params); err != nil {
			return err
		}
		*stackField = stackName
	}
	if *logicalIDField != "" {
		return nil
	}

	outputs, err := a.Stacks.PollStack(ctx, stackName, cfntypes.StackStatusCreateComplete, cloudformation.PollBudget(capacity), a.stackPollInterval())
	if err != nil {
		return err
	}
	logicalID, ok := outputs["AsgLogicalId"]
	if !ok {
		return retry.Fatal(&MissingOutputError{StackName: stackName, OutputKey: "AsgLogicalId"})
	}
	*logicalIDField = logicalID

	// The NLB is shared between the two groups; record it from
	// whichever stack reports it first.
	if a.Spec.Resources.NLBARN == "" {
		a.Spec.Resources.NLBARN = outputs["NlbArn"]
		a.Spec.Resources.NLBTargetGroupARN = outputs["NlbTargetGroupArn"]
		a.Spec.Resources.NLBDNSName = outputs["NlbDnsName"]
	}
	return nil
}

func (a *Applier) createStack(ctx context.Context, name, body string, params map[string]string) error {
	tags := map[string]string{"ID": a.Spec.ID}
	if err := a.Stacks.CreateStack(ctx, name, body, params, tags); err != nil {
		return err
	}
	a.observer().Event(Event{Type: EventResourceCreated, Phase: name, Message: "stack creation requested", Resource: name})
	return nil
}

func (a *Applier) awaitReady(ctx context.Context, kind naming.NodeKind, count int) ([]rendezvous.Node, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.rendezvousTimeout())
	defer cancel()
	return rendezvous.AwaitReady(waitCtx, a.Store, a.Spec.Resources.S3Bucket, a.Spec.ID, kind, count, a.rendezvousPollInterval())
}

func (a *Applier) verifyHealth(ctx context.Context, nodes []rendezvous.Node) error {
	for _, node := range nodes {
		baseURL := fmt.Sprintf("http://%s:%d", node.IP, a.Spec.HTTPPort)
		err := retry.Fixed(ctx, a.healthAttempts(), a.healthInterval(), func() error {
			return a.Health.CheckLiveness(ctx, baseURL)
		})
		if err != nil {
			return fmt.Errorf("node %s (%s) failed health check: %w", node.NodeID, node.IP, err)
		}
	}
	return nil
}
