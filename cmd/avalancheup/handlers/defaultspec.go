// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and tested independently of the CLI
// framework.
package handlers

import (
	"fmt"
	"io"

	"github.com/gyuho/avalanche-ops/internal/spec"
)

// DefaultSpecOptions carries the default-spec command flags.
type DefaultSpecOptions struct {
	NetworkName    string
	GenesisFile    string
	AvalanchedBin  string
	AvalanchegoBin string
	PluginsDir     string
	KeysToGenerate int
	SpecFilePath   string
}

// DefaultSpec writes a starter spec file and echoes it to out.
func DefaultSpec(out io.Writer, opts DefaultSpecOptions) error {
	s := spec.Default(spec.DefaultOptions{
		NetworkName:    opts.NetworkName,
		GenesisFile:    opts.GenesisFile,
		AvalanchedBin:  opts.AvalanchedBin,
		AvalanchegoBin: opts.AvalanchegoBin,
		PluginsDir:     opts.PluginsDir,
		KeysToGenerate: opts.KeysToGenerate,
	})
	if err := s.Validate(); err != nil {
		return err
	}
	if err := s.Persist(opts.SpecFilePath); err != nil {
		return err
	}

	data, err := s.Bytes()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote spec to %s:\n\n%s", opts.SpecFilePath, data)
	fmt.Fprintf(out, "\nnext: avalancheup apply --spec-file-path %s\n", opts.SpecFilePath)
	return nil
}
