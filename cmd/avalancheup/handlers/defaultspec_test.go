package handlers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyuho/avalanche-ops/internal/spec"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	return path
}

func TestDefaultSpecWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "cluster.yaml")

	var out bytes.Buffer
	err := DefaultSpec(&out, DefaultSpecOptions{
		NetworkName:    "custom-999",
		GenesisFile:    writeStub(t, dir, "genesis.json"),
		AvalanchedBin:  writeStub(t, dir, "avalanched"),
		AvalanchegoBin: writeStub(t, dir, "avalanchego"),
		SpecFilePath:   specPath,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "wrote spec to")

	s, err := spec.Load(specPath)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, "custom-999", s.NetworkName)
	assert.Equal(t, spec.DefaultAnchorNodes, s.Machine.AnchorNodes)
	assert.True(t, strings.HasPrefix(s.ID, "avalanche-ops-"))
}

func TestDefaultSpecRejectsReservedNetwork(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	err := DefaultSpec(&out, DefaultSpecOptions{
		NetworkName:    "fuji",
		GenesisFile:    writeStub(t, dir, "genesis.json"),
		AvalanchedBin:  writeStub(t, dir, "avalanched"),
		AvalanchegoBin: writeStub(t, dir, "avalanchego"),
		SpecFilePath:   filepath.Join(dir, "cluster.yaml"),
	})
	var validation *spec.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "network_name", validation.Field)
}

func TestDefaultSpecRejectsMissingGenesisForCustomNetwork(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	err := DefaultSpec(&out, DefaultSpecOptions{
		NetworkName:    "custom-999",
		AvalanchedBin:  writeStub(t, dir, "avalanched"),
		AvalanchegoBin: writeStub(t, dir, "avalanchego"),
		SpecFilePath:   filepath.Join(dir, "cluster.yaml"),
	})
	var validation *spec.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "install_artifacts.genesis_file", validation.Field)
}

func TestConfirmParsesAnswers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"anything\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "test")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "continue? [y/N]")
	}
}
