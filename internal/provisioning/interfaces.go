package provisioning

import (
	"context"
	"time"

	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/gyuho/avalanche-ops/internal/platform/ec2"
	"github.com/gyuho/avalanche-ops/internal/platform/kms"
	"github.com/gyuho/avalanche-ops/internal/platform/sts"
)

// The workflows talk to the cloud through these narrow interfaces so
// tests can drive them with in-memory fakes. The platform clients
// satisfy them.

// ObjectStore is the S3 surface used by apply and delete.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	PutFile(ctx context.Context, localPath, bucket, key string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
	DeleteObjects(ctx context.Context, bucket, prefix string) error
	DeleteBucket(ctx context.Context, bucket string) error
}

// KeyManager is the KMS surface used by apply and delete.
type KeyManager interface {
	CreateKey(ctx context.Context, description string) (kms.Key, error)
	ScheduleKeyDeletion(ctx context.Context, keyID string) error
	GenerateDataKey(ctx context.Context, keyARN string) (kms.DataKey, error)
	Decrypt(ctx context.Context, keyARN string, ciphertext []byte) ([]byte, error)
}

// StackManager is the CloudFormation surface used by apply and delete.
type StackManager interface {
	CreateStack(ctx context.Context, name, templateBody string, parameters map[string]string, tags map[string]string) error
	DeleteStack(ctx context.Context, name string) error
	PollStack(ctx context.Context, name string, desired cfntypes.StackStatus, timeout, interval time.Duration) (map[string]string, error)
}

// MachineService is the EC2 surface used by apply and delete.
type MachineService interface {
	ImportKeyPair(ctx context.Context, name string, publicKey []byte) error
	DeleteKeyPair(ctx context.Context, name string) error
	ListASGInstances(ctx context.Context, asgName string) ([]ec2.Instance, error)
}

// IdentityService resolves the current AWS caller.
type IdentityService interface {
	GetIdentity(ctx context.Context) (sts.Identity, error)
}

// LogService deletes per-cluster log groups.
type LogService interface {
	DeleteLogGroupsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// HealthChecker probes a node's health endpoint.
type HealthChecker interface {
	CheckLiveness(ctx context.Context, baseURL string) error
}
