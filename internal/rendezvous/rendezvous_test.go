package rendezvous

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyuho/avalanche-ops/internal/naming"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = body
	return nil
}

func (f *fakeStore) ListObjects(_ context.Context, bucket, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	full := bucket + "/" + prefix
	for k := range f.objects {
		if len(k) >= len(full) && k[:len(full)] == full {
			keys = append(keys, k[len(bucket)+1:])
		}
	}
	return keys, nil
}

func TestPublishAndListReady(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	anchor := Node{InstanceID: "i-0aa", IP: "1.2.3.4", NodeID: "NodeID-abc", Kind: naming.KindAnchor}
	nonAnchor := Node{InstanceID: "i-0bb", IP: "5.6.7.8", NodeID: "NodeID-def", Kind: naming.KindNonAnchor}
	require.NoError(t, Publish(ctx, store, "bkt", "demo", anchor))
	require.NoError(t, Publish(ctx, store, "bkt", "demo", nonAnchor))

	anchors, err := ListReady(ctx, store, "bkt", "demo", naming.KindAnchor)
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	assert.Equal(t, anchor, anchors[0])

	nonAnchors, err := ListReady(ctx, store, "bkt", "demo", naming.KindNonAnchor)
	require.NoError(t, err)
	require.Len(t, nonAnchors, 1)
	assert.Equal(t, nonAnchor, nonAnchors[0])
}

func TestListReadyDeduplicatesByInstance(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	first := Node{InstanceID: "i-0aa", IP: "1.2.3.4", NodeID: "NodeID-abc", Kind: naming.KindAnchor}
	require.NoError(t, Publish(ctx, store, "bkt", "demo", first))

	// Same instance came back with a new public IP.
	second := first
	second.IP = "9.9.9.9"
	require.NoError(t, Publish(ctx, store, "bkt", "demo", second))

	nodes, err := ListReady(ctx, store, "bkt", "demo", naming.KindAnchor)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "i-0aa", nodes[0].InstanceID)
}

func TestAwaitReadyCompletes(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = Publish(context.Background(), store, "bkt", "demo", Node{
			InstanceID: "i-0aa", IP: "1.2.3.4", NodeID: "NodeID-abc", Kind: naming.KindAnchor,
		})
	}()

	nodes, err := AwaitReady(ctx, store, "bkt", "demo", naming.KindAnchor, 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestAwaitReadyTimesOut(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, Publish(context.Background(), store, "bkt", "demo", Node{
		InstanceID: "i-0aa", IP: "1.2.3.4", NodeID: "NodeID-abc", Kind: naming.KindAnchor,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	nodes, err := AwaitReady(ctx, store, "bkt", "demo", naming.KindAnchor, 3, 10*time.Millisecond)
	var incomplete *RendezvousIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 1, incomplete.Observed)
	assert.Equal(t, 3, incomplete.Expected)
	assert.Len(t, nodes, 1)
}
