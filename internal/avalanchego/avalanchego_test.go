package avalanchego

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyuho/avalanche-ops/internal/spec"
)

func customSpec(t *testing.T) *spec.Spec {
	t.Helper()
	return spec.Default(spec.DefaultOptions{NetworkName: "custom-123"})
}

func TestArgsForCustomNetworkAnchor(t *testing.T) {
	s := customSpec(t)
	cfg := NewLaunchConfig()
	cfg.PublicIP = "1.2.3.4"

	args := cfg.Args(s)

	assert.Contains(t, args, "--network-id=custom-123")
	assert.Contains(t, args, "--genesis="+DefaultGenesisPath)
	assert.Contains(t, args, "--public-ip=1.2.3.4")
	assert.Contains(t, args, "--http-port=9650")
	assert.Contains(t, args, "--staking-port=9651")
	assert.Contains(t, args, "--snow-sample-size=20")
	assert.Contains(t, args, "--snow-quorum-size=15")
	assert.Contains(t, args, "--staking-tls-key-file="+DefaultTLSKeyPath)
	for _, arg := range args {
		assert.NotContains(t, arg, "--bootstrap-ips")
	}
}

func TestArgsForNonAnchorIncludesBootstrapPeers(t *testing.T) {
	s := customSpec(t)
	cfg := NewLaunchConfig()
	cfg.BootstrapIPs = []string{"1.2.3.4:9651", "5.6.7.8:9651"}
	cfg.BootstrapIDs = []string{"NodeID-abc", "NodeID-def"}

	args := cfg.Args(s)

	assert.Contains(t, args, "--bootstrap-ips=1.2.3.4:9651,5.6.7.8:9651")
	assert.Contains(t, args, "--bootstrap-ids=NodeID-abc,NodeID-def")
}

func TestArgsForMainnetOmitsGenesis(t *testing.T) {
	s := spec.Default(spec.DefaultOptions{NetworkName: spec.MainnetNetworkName})

	args := NewLaunchConfig().Args(s)
	for _, arg := range args {
		assert.NotContains(t, arg, "--genesis=")
	}
}

func TestArgsAreDeterministic(t *testing.T) {
	s := customSpec(t)
	cfg := NewLaunchConfig()
	cfg.PublicIP = "1.2.3.4"

	first := cfg.Args(s)
	second := cfg.Args(s)
	assert.Equal(t, first, second)
	assert.True(t, sort.StringsAreSorted(first))
}

func TestCommandStartsWithBinPath(t *testing.T) {
	s := customSpec(t)
	cmd := NewLaunchConfig().Command(s)
	assert.True(t, strings.HasPrefix(cmd, DefaultBinPath+" "))
}

func TestCheckLiveness(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "healthy", status: http.StatusOK, body: `{"healthy":true}`, wantErr: false},
		{name: "unhealthy", status: http.StatusOK, body: `{"healthy":false}`, wantErr: true},
		{name: "service unavailable", status: http.StatusServiceUnavailable, body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/ext/health/liveness", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewHealthClient().CheckLiveness(context.Background(), srv.URL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
