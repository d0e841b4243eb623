// Package rendezvous coordinates node readiness through object
// storage. Each node publishes an empty marker object whose key
// encodes its identity; the orchestrator and peer agents list the
// marker prefix to discover who is ready without any direct
// connectivity.
package rendezvous

import (
	"context"
	"fmt"
	"time"

	"github.com/gyuho/avalanche-ops/internal/naming"
)

// ObjectStore is the subset of object storage used for readiness
// rendezvous. The S3 platform client satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Node identifies a ready node. All fields are recoverable from the
// marker key alone.
type Node struct {
	InstanceID string
	IP         string
	NodeID     string
	Kind       naming.NodeKind
}

// RendezvousIncompleteError reports a readiness wait that ended before
// the expected number of nodes published markers.
type RendezvousIncompleteError struct {
	Kind     naming.NodeKind
	Observed int
	Expected int
}

func (e *RendezvousIncompleteError) Error() string {
	return fmt.Sprintf("only %d of %d %s nodes became ready", e.Observed, e.Expected, e.Kind)
}

// Publish writes the node's readiness marker. Republishing the same
// marker is a no-op for readers, so callers may do it periodically.
func Publish(ctx context.Context, store ObjectStore, bucket, id string, node Node) error {
	key := naming.MarkerKey(id, node.Kind, node.InstanceID, node.IP, node.NodeID)
	if err := store.PutObject(ctx, bucket, key, nil); err != nil {
		return fmt.Errorf("failed to publish readiness marker: %w", err)
	}
	return nil
}

// ListReady returns the nodes of the given kind that have published
// markers, deduplicated by instance. Later markers from the same
// instance win, so a node that restarted with a new IP is reported
// once with its latest identity.
func ListReady(ctx context.Context, store ObjectStore, bucket, id string, kind naming.NodeKind) ([]Node, error) {
	keys, err := store.ListObjects(ctx, bucket, naming.MailboxPrefix(id, kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list readiness markers: %w", err)
	}

	byInstance := make(map[string]Node, len(keys))
	var order []string
	for _, key := range keys {
		_, markerKind, instanceID, ip, nodeID, err := naming.ParseMarkerKey(key)
		if err != nil || markerKind != kind {
			continue
		}
		if _, seen := byInstance[instanceID]; !seen {
			order = append(order, instanceID)
		}
		byInstance[instanceID] = Node{
			InstanceID: instanceID,
			IP:         ip,
			NodeID:     nodeID,
			Kind:       markerKind,
		}
	}

	nodes := make([]Node, 0, len(order))
	for _, instanceID := range order {
		nodes = append(nodes, byInstance[instanceID])
	}
	return nodes, nil
}

// AwaitReady polls the mailbox until targetCount distinct nodes of the
// given kind have published markers. The context must carry a deadline
// or be cancellable; when it expires before the target is met, the
// nodes observed so far are returned with a RendezvousIncompleteError.
func AwaitReady(ctx context.Context, store ObjectStore, bucket, id string, kind naming.NodeKind, targetCount int, pollInterval time.Duration) ([]Node, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var nodes []Node
	for {
		var err error
		nodes, err = ListReady(ctx, store, bucket, id, kind)
		if err != nil {
			return nil, err
		}
		if len(nodes) >= targetCount {
			return nodes, nil
		}

		select {
		case <-ctx.Done():
			return nodes, &RendezvousIncompleteError{
				Kind:     kind,
				Observed: len(nodes),
				Expected: targetCount,
			}
		case <-ticker.C:
		}
	}
}
