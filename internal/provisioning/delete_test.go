package provisioning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyuho/avalanche-ops/internal/naming"
	"github.com/gyuho/avalanche-ops/internal/spec"
)

type fakeLogs struct {
	prefixes []string
}

func (f *fakeLogs) DeleteLogGroupsByPrefix(_ context.Context, prefix string) ([]string, error) {
	f.prefixes = append(f.prefixes, prefix)
	return []string{prefix + "-avalanche"}, nil
}

func newDeleteFixture(t *testing.T) (*Deleter, *fakeStore, *fakeStacks, *fakeKeys, *fakeMachines, *fakeLogs) {
	t.Helper()
	dir := t.TempDir()

	s := spec.Default(spec.DefaultOptions{NetworkName: "custom-999"})
	s.Machine.AnchorNodes = 1
	s.Machine.NonAnchorNodes = 1
	r := &s.Resources
	r.KMSKeyID = "key-1"
	r.KMSKeyARN = "arn:aws:kms:us-west-2:123:key/key-1"
	r.EC2KeyName = s.ID + "-ec2-key"
	r.EC2KeyPath = filepath.Join(dir, "access.key")
	r.CloudFormationEC2InstanceRole = naming.StackName(s.ID, naming.StackEC2InstanceRole)
	r.CloudFormationVPC = naming.StackName(s.ID, naming.StackVPC)
	r.CloudFormationASGAnchorNodes = naming.StackName(s.ID, naming.StackASGAnchorNodes)
	r.CloudFormationASGNonAnchorNodes = naming.StackName(s.ID, naming.StackASGNonAnchorNodes)
	r.S3Bucket = "demo-bucket"
	r.S3BucketDBBackup = "demo-bucket-backup"

	store := newFakeStore()
	require.NoError(t, store.CreateBucket(context.Background(), r.S3Bucket))
	require.NoError(t, store.CreateBucket(context.Background(), r.S3BucketDBBackup))
	require.NoError(t, store.PutObject(context.Background(), r.S3Bucket, naming.ConfigFile(s.ID), []byte("spec")))

	stacks := newFakeStacks()
	keys := &fakeKeys{}
	machines := &fakeMachines{}
	logs := &fakeLogs{}

	d := &Deleter{
		Spec:              s,
		Store:             store,
		Keys:              keys,
		Stacks:            stacks,
		Machines:          machines,
		Logs:              logs,
		StackPollInterval: time.Millisecond,
	}
	return d, store, stacks, keys, machines, logs
}

func TestDeleteTearsDownInOrder(t *testing.T) {
	d, _, stacks, keys, machines, _ := newDeleteFixture(t)

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{d.Spec.Resources.EC2KeyName}, machines.deleted)
	assert.Equal(t, []string{"key-1"}, keys.scheduled)

	// Role and ASG deletions are triggered before the VPC by the
	// dependency order.
	require.Len(t, stacks.deleted, 4)
	assert.Equal(t, naming.StackName(d.Spec.ID, naming.StackEC2InstanceRole), stacks.deleted[0])
	assert.Equal(t, naming.StackName(d.Spec.ID, naming.StackASGNonAnchorNodes), stacks.deleted[1])
	assert.Equal(t, naming.StackName(d.Spec.ID, naming.StackASGAnchorNodes), stacks.deleted[2])
	assert.Equal(t, naming.StackName(d.Spec.ID, naming.StackVPC), stacks.deleted[3])
}

func TestDeleteKeepsBucketWithoutDeleteAll(t *testing.T) {
	d, store, _, _, _, logs := newDeleteFixture(t)

	require.NoError(t, d.Run(context.Background()))

	_, err := store.GetObject(context.Background(), d.Spec.Resources.S3Bucket, naming.ConfigFile(d.Spec.ID))
	assert.NoError(t, err)
	assert.Empty(t, logs.prefixes)
}

func TestDeleteAllRemovesBucketAndLogsButNeverBackup(t *testing.T) {
	d, store, _, _, _, logs := newDeleteFixture(t)
	d.DeleteAll = true

	require.NoError(t, d.Run(context.Background()))

	store.mu.Lock()
	_, bucketExists := store.buckets[d.Spec.Resources.S3Bucket]
	_, backupExists := store.buckets[d.Spec.Resources.S3BucketDBBackup]
	store.mu.Unlock()

	assert.False(t, bucketExists)
	assert.True(t, backupExists)
	assert.Equal(t, []string{d.Spec.ID}, logs.prefixes)
}

func TestDeleteTwiceIsTolerated(t *testing.T) {
	d, _, _, _, machines, _ := newDeleteFixture(t)

	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Run(context.Background()))

	assert.Len(t, machines.deleted, 2)
}
