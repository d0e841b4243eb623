package provisioning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/gyuho/avalanche-ops/internal/naming"
	"github.com/gyuho/avalanche-ops/internal/platform/cloudformation"
	"github.com/gyuho/avalanche-ops/internal/spec"
)

// Deleter tears down the cluster recorded in a spec. Deletion runs in
// reverse dependency order, triggering the slow stack deletions first
// and confirming them afterwards so independent stacks drain in
// parallel on the cloud side.
type Deleter struct {
	Spec *spec.Spec

	Store    ObjectStore
	Keys     KeyManager
	Stacks   StackManager
	Machines MachineService
	Logs     LogService
	Observer Observer

	// DeleteAll additionally removes the cluster bucket contents, the
	// bucket itself, and the per-cluster log groups. The database
	// backup bucket is never touched.
	DeleteAll bool

	StackPollInterval time.Duration
}

func (d *Deleter) stackPollInterval() time.Duration {
	if d.StackPollInterval > 0 {
		return d.StackPollInterval
	}
	return cloudformation.PollInterval
}

func (d *Deleter) observer() Observer {
	if d.Observer != nil {
		return d.Observer
	}
	return NopObserver{}
}

// Run executes the delete workflow. Individual resource deletions that
// fail because the resource is already gone are tolerated so a
// partially deleted cluster can be deleted again.
func (d *Deleter) Run(ctx context.Context) error {
	r := &d.Spec.Resources
	obs := d.observer()

	if r.EC2KeyName != "" {
		if err := d.Machines.DeleteKeyPair(ctx, r.EC2KeyName); err != nil {
			obs.Event(Event{Type: EventPhaseFailed, Phase: "ec2-key-pair", Message: err.Error()})
		} else {
			obs.Event(Event{Type: EventResourceDeleted, Phase: "ec2-key-pair", Resource: r.EC2KeyName, Message: "deleted"})
		}
	}
	if r.EC2KeyPath != "" {
		if err := os.Remove(r.EC2KeyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove local access key %s: %w", r.EC2KeyPath, err)
		}
	}

	if r.KMSKeyID != "" {
		if err := d.Keys.ScheduleKeyDeletion(ctx, r.KMSKeyID); err != nil {
			obs.Event(Event{Type: EventPhaseFailed, Phase: "kms-key", Message: err.Error()})
		} else {
			obs.Event(Event{Type: EventResourceDeleted, Phase: "kms-key", Resource: r.KMSKeyID, Message: "deletion scheduled"})
		}
	}

	// Trigger the slow deletions before confirming any of them.
	for _, stackName := range []string{
		r.CloudFormationEC2InstanceRole,
		r.CloudFormationASGNonAnchorNodes,
		r.CloudFormationASGAnchorNodes,
	} {
		if stackName == "" {
			continue
		}
		if err := d.Stacks.DeleteStack(ctx, stackName); err != nil {
			return err
		}
	}

	for _, confirm := range []struct {
		stackName string
		instances int
	}{
		{r.CloudFormationASGNonAnchorNodes, d.Spec.Machine.NonAnchorNodes},
		{r.CloudFormationASGAnchorNodes, d.Spec.Machine.AnchorNodes},
	} {
		if confirm.stackName == "" {
			continue
		}
		if err := d.confirmDeleted(ctx, confirm.stackName, cloudformation.PollBudget(confirm.instances)); err != nil {
			return err
		}
	}

	// The VPC cannot be deleted until the instances release their
	// network interfaces, so it goes after the ASGs are confirmed gone.
	if r.CloudFormationVPC != "" {
		if err := d.Stacks.DeleteStack(ctx, r.CloudFormationVPC); err != nil {
			return err
		}
		if err := d.confirmDeleted(ctx, r.CloudFormationVPC, cloudformation.PollBudget(0)); err != nil {
			return err
		}
	}

	if r.CloudFormationEC2InstanceRole != "" {
		if err := d.confirmDeleted(ctx, r.CloudFormationEC2InstanceRole, cloudformation.PollBudget(0)); err != nil {
			return err
		}
	}

	if d.DeleteAll {
		if _, err := d.Logs.DeleteLogGroupsByPrefix(ctx, d.Spec.ID); err != nil {
			obs.Event(Event{Type: EventPhaseFailed, Phase: "log-groups", Message: err.Error()})
		}
		if r.S3Bucket != "" {
			if err := d.Store.DeleteObjects(ctx, r.S3Bucket, d.Spec.ID+"/"); err != nil {
				return err
			}
			if err := d.Store.DeleteBucket(ctx, r.S3Bucket); err != nil {
				return err
			}
			obs.Event(Event{Type: EventResourceDeleted, Phase: "bucket", Resource: r.S3Bucket, Message: "deleted"})
		}
	}

	return nil
}

func (d *Deleter) confirmDeleted(ctx context.Context, stackName string, budget time.Duration) error {
	_, err := d.Stacks.PollStack(ctx, stackName, cfntypes.StackStatusDeleteComplete, budget, d.stackPollInterval())
	if err != nil {
		return err
	}
	d.observer().Event(Event{Type: EventResourceDeleted, Phase: "stack", Resource: stackName, Message: "deleted"})
	return nil
}

// StackNames returns every stack a cluster may own, in deletion
// trigger order.
func StackNames(id string) []string {
	return []string{
		naming.StackName(id, naming.StackEC2InstanceRole),
		naming.StackName(id, naming.StackASGNonAnchorNodes),
		naming.StackName(id, naming.StackASGAnchorNodes),
		naming.StackName(id, naming.StackVPC),
	}
}
