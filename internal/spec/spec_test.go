package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte{0}, 0o600))
	return path
}

func testArtifacts(t *testing.T) InstallArtifacts {
	t.Helper()
	dir := t.TempDir()
	return InstallArtifacts{
		GenesisFile:    writeTempFile(t, dir, "genesis.json"),
		AvalanchedBin:  writeTempFile(t, dir, "avalanched"),
		AvalanchegoBin: writeTempFile(t, dir, "avalanchego"),
	}
}

func TestDefaultCustomNetwork(t *testing.T) {
	artifacts := testArtifacts(t)

	s := Default(DefaultOptions{
		NetworkName:    "custom",
		AvalanchedBin:  artifacts.AvalanchedBin,
		AvalanchegoBin: artifacts.AvalanchegoBin,
		GenesisFile:    artifacts.GenesisFile,
		KeysToGenerate: 5,
	})

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, DefaultAnchorNodes, s.Machine.AnchorNodes)
	assert.Equal(t, DefaultNonAnchorNodes, s.Machine.NonAnchorNodes)
	assert.Equal(t, 5, s.KeysToGenerate)
	assert.Equal(t, DefaultSnowSampleSize, s.SnowSampleSize)
	assert.Equal(t, DefaultSnowQuorumSize, s.SnowQuorumSize)
	assert.Equal(t, DefaultHTTPPort, s.HTTPPort)
	require.NoError(t, s.Validate())
}

func TestDefaultMainnet(t *testing.T) {
	artifacts := testArtifacts(t)

	s := Default(DefaultOptions{
		NetworkName:    MainnetNetworkName,
		AvalanchedBin:  artifacts.AvalanchedBin,
		AvalanchegoBin: artifacts.AvalanchegoBin,
	})

	assert.Zero(t, s.Machine.AnchorNodes)
	require.NoError(t, s.Validate())
}

func TestValidateBoundaries(t *testing.T) {
	newSpec := func(network string) *Spec {
		artifacts := testArtifacts(t)
		s := Default(DefaultOptions{
			NetworkName:    network,
			AvalanchedBin:  artifacts.AvalanchedBin,
			AvalanchegoBin: artifacts.AvalanchegoBin,
		})
		if network != MainnetNetworkName {
			s.InstallArtifacts.GenesisFile = artifacts.GenesisFile
		}
		return s
	}

	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{
			name:   "empty id",
			mutate: func(s *Spec) { s.ID = "" },
		},
		{
			name:   "empty network name",
			mutate: func(s *Spec) { s.NetworkName = "" },
		},
		{
			name:   "reserved network name",
			mutate: func(s *Spec) { s.NetworkName = "fuji" },
		},
		{
			name:   "empty region",
			mutate: func(s *Spec) { s.Resources.Region = "" },
		},
		{
			name:   "custom network with zero anchor nodes",
			mutate: func(s *Spec) { s.Machine.AnchorNodes = 0 },
		},
		{
			name:   "anchor nodes above maximum",
			mutate: func(s *Spec) { s.Machine.AnchorNodes = MaxAnchorNodes + 1 },
		},
		{
			name:   "non-anchor nodes below minimum",
			mutate: func(s *Spec) { s.Machine.NonAnchorNodes = 0 },
		},
		{
			name:   "non-anchor nodes above maximum",
			mutate: func(s *Spec) { s.Machine.NonAnchorNodes = MaxNonAnchorNodes + 1 },
		},
		{
			name:   "custom network without genesis",
			mutate: func(s *Spec) { s.InstallArtifacts.GenesisFile = "" },
		},
		{
			name:   "missing avalanchego binary",
			mutate: func(s *Spec) { s.InstallArtifacts.AvalanchegoBin = "/nonexistent/avalanchego" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSpec("custom")
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateMainnetRejectsAnchors(t *testing.T) {
	artifacts := testArtifacts(t)
	s := Default(DefaultOptions{
		NetworkName:    MainnetNetworkName,
		AvalanchedBin:  artifacts.AvalanchedBin,
		AvalanchegoBin: artifacts.AvalanchegoBin,
	})

	s.Machine.AnchorNodes = 1
	require.Error(t, s.Validate())

	s.Machine.AnchorNodes = 0
	s.InstallArtifacts.GenesisFile = artifacts.GenesisFile
	require.Error(t, s.Validate(), "genesis must be forbidden for mainnet")
}

func TestPersistLoadRoundTrip(t *testing.T) {
	artifacts := testArtifacts(t)
	s := Default(DefaultOptions{
		NetworkName:    "custom",
		AvalanchedBin:  artifacts.AvalanchedBin,
		AvalanchegoBin: artifacts.AvalanchegoBin,
		GenesisFile:    artifacts.GenesisFile,
	})
	s.Resources.KMSKeyID = "key-id"
	s.Resources.PublicSubnetIDs = []string{"subnet-1", "subnet-2"}

	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, s.Persist(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: [unterminated"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestAccessKeyPath(t *testing.T) {
	assert.Equal(t, "/tmp/aops/cluster-ec2-access.key", AccessKeyPath("/tmp/aops/cluster.yaml"))
	assert.Equal(t, "cluster-ec2-access.key", AccessKeyPath("cluster.yaml"))
}
