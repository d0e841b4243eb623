package provisioning

import (
	"fmt"

	"github.com/gyuho/avalanche-ops/internal/spec"
)

// IdentityMismatchError reports an apply attempted under a different
// AWS caller than the one that created the cluster.
type IdentityMismatchError struct {
	Recorded spec.Identity
	Current  spec.Identity
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf(
		"cluster was created by %s (account %s), current caller is %s (account %s)",
		e.Recorded.UserID, e.Recorded.AccountID, e.Current.UserID, e.Current.AccountID,
	)
}

// MissingOutputError reports a stack that completed without one of the
// outputs the workflow depends on.
type MissingOutputError struct {
	StackName string
	OutputKey string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("stack %s completed without output %s", e.StackName, e.OutputKey)
}
